package models

// WasteCategory is the kind of material in a deposit.
type WasteCategory string

const (
	WasteOrganic WasteCategory = "ORGANIC"
	WastePlastic WasteCategory = "PLASTIC"
	WasteMetal   WasteCategory = "METAL"
	WastePaper   WasteCategory = "PAPER"
)

// WasteCategories lists every category in display order.
var WasteCategories = []WasteCategory{WasteOrganic, WastePlastic, WasteMetal, WastePaper}

func (c WasteCategory) Valid() bool {
	switch c {
	case WasteOrganic, WastePlastic, WasteMetal, WastePaper:
		return true
	}
	return false
}

// Level is the tier derived from redeemable points.
type Level string

const (
	LevelBronze Level = "BRONZE"
	LevelSilver Level = "SILVER"
	LevelGold   Level = "GOLD"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBronze, LevelSilver, LevelGold:
		return true
	}
	return false
}

// Emoji is shown next to the level in notifications.
func (l Level) Emoji() string {
	switch l {
	case LevelBronze:
		return "🥉"
	case LevelSilver:
		return "🥈"
	case LevelGold:
		return "🥇"
	}
	return "🏆"
}

// TreeStage is the growth stage derived from eco XP.
type TreeStage string

const (
	StageSeed   TreeStage = "SEED"
	StageSprout TreeStage = "SPROUT"
	StageSmall  TreeStage = "SMALL"
	StageMedium TreeStage = "MEDIUM"
	StageLarge  TreeStage = "LARGE"
)

func (s TreeStage) Valid() bool {
	switch s {
	case StageSeed, StageSprout, StageSmall, StageMedium, StageLarge:
		return true
	}
	return false
}

// ScanMethod records how a deposit was submitted.
type ScanMethod string

const (
	ScanManual ScanMethod = "MANUAL"
	ScanAI     ScanMethod = "AI_SCAN"
)

func (m ScanMethod) Valid() bool {
	switch m {
	case ScanManual, ScanAI:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}
