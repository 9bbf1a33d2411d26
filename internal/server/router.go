package server

import (
	"net/http"

	handler "auction-engine/services/bidding/handler"
	"auction-engine/services/bidding/helpers"

	"github.com/gin-gonic/gin"
)

// Services groups what the HTTP layer calls into
type Services struct {
	Bidding  handler.BiddingServiceInterface
	Auctions handler.AuctionServiceInterface
	Orders   handler.OrderServiceInterface
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(svc Services) *gin.Engine {
	helpers.RegisterValidators()

	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery()) // recover from panics
	router.Use(RequestIDMiddleware)
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	biddingHandler := handler.NewBiddingHandler(svc.Bidding)
	auctionHandler := handler.NewAuctionHandler(svc.Auctions, svc.Orders)

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.PlaceBidHandler)
		bids.POST("/:bid_id/cancel", biddingHandler.CancelBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/leading", biddingHandler.GetLeadingBidHandler)
		auctions.POST("/:auction_id/resolve-auto-bids", biddingHandler.ResolveAutoBidsHandler)
		auctions.POST("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctions.POST("/:auction_id/cancel", auctionHandler.CancelAuctionHandler)
		auctions.POST("/:auction_id/close", auctionHandler.CloseAuctionHandler)
		auctions.GET("/:auction_id/order", auctionHandler.GetAuctionOrderHandler)
	}

	orders := router.Group("/orders")
	{
		orders.GET("/:order_id", auctionHandler.GetOrderHandler)
		orders.POST("/:order_id/deliver", auctionHandler.DeliverOrderHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
	}

	return router
}
