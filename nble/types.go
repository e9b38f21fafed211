package nble

import "fmt"

// HandleRange scopes discovery and service-changed operations to
// [Start, End]. The zero value is invalid; use Range to construct.
type HandleRange struct {
	Start uint16
	End   uint16
}

// Range builds a HandleRange, returning an error when start > end.
func Range(start, end uint16) (HandleRange, error) {
	if start > end {
		return HandleRange{}, fmt.Errorf("invalid handle range 0x%04x..0x%04x: start > end", start, end)
	}
	return HandleRange{Start: start, End: end}, nil
}

// Valid reports whether Start <= End.
func (r HandleRange) Valid() bool { return r.Start <= r.End }

// Contains reports whether h falls inside the range.
func (r HandleRange) Contains(h uint16) bool { return h >= r.Start && h <= r.End }

func (r HandleRange) String() string {
	return fmt.Sprintf("0x%04x..0x%04x", r.Start, r.End)
}

// RegisterParams describes one service registration. ServiceIdx indexes the
// host's service database and is echoed back in the response so the host can
// match it to the submitted service.
type RegisterParams struct {
	ServiceIdx uint8
	AttrCount  uint8
}

// RegisterRsp is the controller's answer to a register request. Handles
// holds one controller-assigned attribute handle per submitted attribute,
// in submission order.
type RegisterRsp struct {
	Status  Status
	Params  RegisterParams
	Handles []uint16
}

// AttrMapping is a (service index, attribute index) pair identifying an
// attribute in the host's service database.
type AttrMapping struct {
	ServiceIdx uint8
	AttrIdx    uint8
}

// SetAttributeParams selects the attribute value to overwrite.
type SetAttributeParams struct {
	ValueHandle uint16
	Offset      uint16
}

// GetAttributeParams selects the attribute value to fetch.
type GetAttributeParams struct {
	ValueHandle uint16
}

// AttributeRsp answers both set- and get-attribute requests; Data is only
// populated for gets.
type AttributeRsp struct {
	Status      Status
	ValueHandle uint16
	Data        []byte
}

// SvcChangedParams scopes a Service Changed indication.
type SvcChangedParams struct {
	ConnHandle uint16
	Range      HandleRange
}

// SvcChangedRsp reports submission of a Service Changed indication.
type SvcChangedRsp struct {
	Status Status
}

// NotifIndParams addresses a notification or indication.
type NotifIndParams struct {
	ConnHandle  uint16
	ValueHandle uint16
	Offset      uint16
}

// NotifIndRsp answers both send-notification and send-indication requests.
// MsgID is MsgIDGattsSendNotifRsp or MsgIDGattsSendIndRsp; for indications a
// success status additionally reports the peer's link-layer acknowledgment.
// ConnHandle is ConnBroadcast for value-change broadcasts.
type NotifIndRsp struct {
	Status      Status
	ConnHandle  uint16
	ValueHandle uint16
	MsgID       MsgID
}

// WriteEvt reports an incoming write from a peer.
type WriteEvt struct {
	Attr       AttrMapping
	ConnHandle uint16
	AttrHandle uint16
	Offset     uint16
	Op         WriteOp
	Data       []byte
}

// DiscoverParams describes a ranged discovery.
type DiscoverParams struct {
	ConnHandle uint16
	Type       DiscoverType
	UUID       string // normalized; empty means "any"
	Range      HandleRange
}

// DiscoverRsp carries one batch of discovered attributes. An empty batch
// with a success status signals end of results.
type DiscoverRsp struct {
	ConnHandle uint16
	Status     Status
	Attrs      []DiscoveredAttr
}

// DiscoveredAttr is the closed variant set a discovery batch is made of:
// PrimaryService, IncludedService, Characteristic, or Descriptor.
type DiscoveredAttr interface {
	discoveredAttr()
}

// PrimaryService is a discovered primary service declaration.
type PrimaryService struct {
	UUID   string
	Handle uint16
	Range  HandleRange
}

// IncludedService is a discovered include declaration.
type IncludedService struct {
	InclHandle uint16
	UUID       string
	Range      HandleRange
}

// Characteristic is a discovered characteristic declaration.
type Characteristic struct {
	Properties  uint8
	DeclHandle  uint16
	ValueHandle uint16
	UUID        string
}

// Descriptor is a discovered descriptor.
type Descriptor struct {
	Handle uint16
	UUID   string
}

func (PrimaryService) discoveredAttr()  {}
func (IncludedService) discoveredAttr() {}
func (Characteristic) discoveredAttr()  {}
func (Descriptor) discoveredAttr()      {}

// ReadParams addresses a remote characteristic read.
type ReadParams struct {
	ConnHandle uint16
	CharHandle uint16
	Offset     uint16
}

// ReadRsp answers a read request.
type ReadRsp struct {
	ConnHandle uint16
	Status     Status
	Handle     uint16
	Offset     uint16
	Data       []byte
}

// WriteParams addresses a remote characteristic write. When WithResp is
// false the controller sends an ATT Write Command and no response message
// follows.
type WriteParams struct {
	ConnHandle uint16
	CharHandle uint16
	Offset     uint16
	WithResp   bool
}

// WriteRsp answers a write-with-response request.
type WriteRsp struct {
	ConnHandle uint16
	Status     Status
	CharHandle uint16
	Len        uint16
}

// ValueEvt reports a notification or indication received from a peer.
type ValueEvt struct {
	ConnHandle uint16
	Status     Status
	Handle     uint16
	Type       IndType
	Data       []byte
}

// TimeoutEvt reports a per-connection GATT protocol timeout. Reason is the
// controller's timeout reason code, passed through opaquely.
type TimeoutEvt struct {
	ConnHandle uint16
	Reason     uint16
}
