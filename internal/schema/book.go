package schema

// PriceLevel is one row of an order book side. Volume is always > 0 while
// the level is stored; a level reported with volume <= 0 is removed.
type PriceLevel struct {
	Price  float64
	Volume float64
	Orders float64
}

// RequiredLevels is the level count each side must hold once a snapshot
// has been applied. The feed delivers exactly this depth.
const RequiredLevels = 400

// DepthLevels are the depths features are computed at.
var DepthLevels = [5]int{10, 20, 50, 100, 400}

// DepthFeatures are the per-depth microstructure features.
type DepthFeatures struct {
	VolumeImbalance float64
	OrderImbalance  float64
	BidVwapChange   float64
	AskVwapChange   float64
}

// BookFeatures is the full feature set derived from one book state.
type BookFeatures struct {
	MidPrice       float64
	MidPriceChange float64
	Depths         [len(DepthLevels)]DepthFeatures
}
