// Package ews is a client for the EWS electricity price API.
//
// A Client fetches today's and tomorrow's prices in one request and keeps
// them until the next successful fetch:
//
//	c := ews.New(apiKey)
//	defer c.Close()
//
//	prices, err := c.Get(ctx)
//	if err != nil {
//		return err
//	}
//	now := ews.GetPriceNow(prices, time.Now())
//	today := ews.MatchDate(prices, hours.Today(time.Local))
package ews
