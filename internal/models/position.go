package models

import "time"

// PositionType classifies a Position by the sign of its quantity.
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
	PositionFlat  PositionType = "FLAT"
)

// Product is the broker-defined position lifetime class, carried verbatim
// through exit orders.
type Product string

const (
	ProductMIS  Product = "MIS"
	ProductCNC  Product = "CNC"
	ProductNRML Product = "NRML"
	ProductCO   Product = "CO"
)

// Position is a broker position as observed by the Position Monitor.
// Identity is (Exchange, TradingSymbol).
type Position struct {
	Exchange        string
	TradingSymbol   string
	InstrumentToken uint32
	Product         Product
	Quantity        int64
	AveragePrice    float64
	LastPrice       float64
	BuyQuantity     int64
	SellQuantity    int64
	BuyPrice        float64
	SellPrice       float64
	Multiplier      float64
	FirstSeen       time.Time
	LastUpdated     time.Time
}

// Key returns the identity tuple used by the Position Monitor's diff.
func (p *Position) Key() string {
	return p.Exchange + ":" + p.TradingSymbol
}

// Type derives LONG/SHORT/FLAT from the sign of Quantity.
func (p *Position) Type() PositionType {
	switch {
	case p.Quantity > 0:
		return PositionLong
	case p.Quantity < 0:
		return PositionShort
	default:
		return PositionFlat
	}
}

// EntryPrice is BuyPrice if long, SellPrice if short, else AveragePrice.
func (p *Position) EntryPrice() float64 {
	switch p.Type() {
	case PositionLong:
		return p.BuyPrice
	case PositionShort:
		return p.SellPrice
	default:
		return p.AveragePrice
	}
}

// AbsQuantity returns |Quantity|.
func (p *Position) AbsQuantity() int64 {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// IsFlat reports whether the position has zero quantity. A flat position
// must never be tracked as an ActiveTrade.
func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}
