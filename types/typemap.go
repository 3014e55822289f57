package types

// DynamicType is the closed set of feed item types the cleaner understands.
// The feed API reports these as DYNAMIC_TYPE_* strings; the delete API wants
// a different numeric code for the same type.
type DynamicType string

const (
	TypeForward  DynamicType = "DYNAMIC_TYPE_FORWARD"
	TypeVideo    DynamicType = "DYNAMIC_TYPE_AV"
	TypeDrawing  DynamicType = "DYNAMIC_TYPE_DRAW"
	TypeText     DynamicType = "DYNAMIC_TYPE_WORD"
	TypeArticle  DynamicType = "DYNAMIC_TYPE_ARTICLE"
	TypeMusic    DynamicType = "DYNAMIC_TYPE_MUSIC"
	TypeLiveRcmd DynamicType = "DYNAMIC_TYPE_LIVE_RCMD"
	TypeUnknown  DynamicType = "DYNAMIC_TYPE_UNKNOWN"
)

// DeleteTypeCode maps a feed-reported type to the numeric type code the
// delete endpoint expects. Unmapped types fall back to the forward code,
// since only forwards reach the deletion pipeline.
func DeleteTypeCode(t DynamicType) int {
	switch t {
	case TypeForward:
		return 1
	case TypeVideo:
		return 8
	case TypeDrawing:
		return 2
	case TypeText:
		return 4
	case TypeArticle:
		return 64
	case TypeMusic:
		return 256
	case TypeLiveRcmd:
		return 2048
	default:
		return 1
	}
}

// IsForward reports whether the type tag marks a forwarded dynamic
func (t DynamicType) IsForward() bool {
	return t == TypeForward
}
