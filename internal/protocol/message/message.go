// Package message owns the closed set of wire messages exchanged with the
// field controller and their tagged JSON encoding.
//
// Ownership boundary:
// - variant catalogue and payload shapes
// - body encode/decode (framing lives in protocol/frame)
package message

// HalfRowLen is the number of grid cells carried by one GDHalfRow.
const HalfRowLen = 64

// Kind is the variant tag as it appears on the wire.
type Kind string

const (
	KindReqName          Kind = "ReqName"
	KindNameDebugGeordon Kind = "NameDebugGeordon"
	KindHeartbeat        Kind = "Heartbeat"
	KindReqNetstats      Kind = "ReqNetstats"
	KindDebugGeordon     Kind = "DebugGeordon"
	KindMovement         Kind = "Movement"
	KindGDReqHalfRow     Kind = "GDReqHalfRow"
	KindGDHalfRow        Kind = "GDHalfRow"
	KindGDPing           Kind = "GDPing"
	KindGDReqPing        Kind = "GDReqPing"
	KindGDFinish         Kind = "GDFinish"
	KindGDAligned        Kind = "GDAligned"
	KindGDBuild          Kind = "GDBuild"
	KindInitialize       Kind = "Initialize"
)

// Message is one decoded wire message.
type Message interface {
	Kind() Kind
}

// Point is a pose plus velocity.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	V     float64 `json:"v"`
	Angle float64 `json:"angle"`
	AV    float64 `json:"av"`
}

type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ReqName struct{}
type NameDebugGeordon struct{}
type Heartbeat struct{}
type ReqNetstats struct{}
type GDPing struct{}
type GDReqPing struct{}
type GDFinish struct{}
type GDAligned struct{}
type GDBuild struct{}

type DebugGeordon struct {
	Text string
}

type Movement struct {
	Point Point
}

type GDReqHalfRow struct {
	Index uint8
}

type GDHalfRow struct {
	Cells [HalfRowLen]byte
}

// Initialize opens a session: target count, reference anchor, border polygon.
type Initialize struct {
	NT uint32       `json:"nt"`
	RA Coordinate   `json:"ra"`
	BD []Coordinate `json:"bd"`
}

// Unknown carries a well-formed variant this client does not model.
type Unknown struct {
	Tag     string
	Payload []byte
}

func (ReqName) Kind() Kind          { return KindReqName }
func (NameDebugGeordon) Kind() Kind { return KindNameDebugGeordon }
func (Heartbeat) Kind() Kind        { return KindHeartbeat }
func (ReqNetstats) Kind() Kind      { return KindReqNetstats }
func (DebugGeordon) Kind() Kind     { return KindDebugGeordon }
func (Movement) Kind() Kind         { return KindMovement }
func (GDReqHalfRow) Kind() Kind     { return KindGDReqHalfRow }
func (GDHalfRow) Kind() Kind        { return KindGDHalfRow }
func (GDPing) Kind() Kind           { return KindGDPing }
func (GDReqPing) Kind() Kind        { return KindGDReqPing }
func (GDFinish) Kind() Kind         { return KindGDFinish }
func (GDAligned) Kind() Kind        { return KindGDAligned }
func (GDBuild) Kind() Kind          { return KindGDBuild }
func (Initialize) Kind() Kind       { return KindInitialize }
func (u Unknown) Kind() Kind        { return Kind(u.Tag) }

// unitVariants maps payload-free tags to their value.
var unitVariants = map[Kind]Message{
	KindReqName:          ReqName{},
	KindNameDebugGeordon: NameDebugGeordon{},
	KindHeartbeat:        Heartbeat{},
	KindReqNetstats:      ReqNetstats{},
	KindGDPing:           GDPing{},
	KindGDReqPing:        GDReqPing{},
	KindGDFinish:         GDFinish{},
	KindGDAligned:        GDAligned{},
	KindGDBuild:          GDBuild{},
}

// Known reports whether k names a modelled variant.
func Known(k Kind) bool {
	if _, ok := unitVariants[k]; ok {
		return true
	}
	switch k {
	case KindDebugGeordon, KindMovement, KindGDReqHalfRow, KindGDHalfRow, KindInitialize:
		return true
	}
	return false
}
