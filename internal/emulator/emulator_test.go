package emulator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Technoculture/zephyr/nble"
	"github.com/Technoculture/zephyr/transport"
)

type frameSink struct {
	mu     sync.Mutex
	frames []nble.Frame
}

func (s *frameSink) receive(f nble.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *frameSink) snapshot() []nble.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nble.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newRig wires an emulator behind a loopback pair and returns the host end
// plus a sink capturing everything the emulator sends back.
func newRig(t *testing.T, sc *Scenario) (transport.Transport, *frameSink) {
	t.Helper()
	hostEnd, ctrlEnd := transport.NewLoopbackPair()
	sink := &frameSink{}
	hostEnd.SetReceiver(sink.receive)
	New(ctrlEnd, sc, quietLogger())
	return hostEnd, sink
}

func registerFrame(t *testing.T, svcIdx uint8, attrs []nble.Attribute) nble.Frame {
	t.Helper()
	table, err := nble.EncodeAttrTable(attrs)
	require.NoError(t, err)
	frame, err := nble.EncodeRegisterReq(nble.RegisterParams{
		ServiceIdx: svcIdx,
		AttrCount:  uint8(len(attrs)),
	}, table)
	require.NoError(t, err)
	return frame
}

func heartRateAttrs() []nble.Attribute {
	return []nble.Attribute{
		{UUID: "2800", Perm: 0x01, Value: []byte{0x0d, 0x18}},
		{UUID: "2803", Perm: 0x01, Value: []byte{0x10}},
		{UUID: "2a37", Perm: 0x02, MaxLen: 4},
		{UUID: "2902", Perm: 0x03, MaxLen: 2},
	}
}

func TestRegisterAssignsSequentialHandles(t *testing.T) {
	hostEnd, sink := newRig(t, nil)

	require.NoError(t, hostEnd.Send(registerFrame(t, 7, heartRateAttrs())))

	frames := sink.snapshot()
	require.Len(t, frames, 1)
	rsp, err := nble.DecodeRegisterRsp(frames[0].Payload)
	require.NoError(t, err)
	assert.True(t, rsp.Status.OK())
	assert.Equal(t, uint8(7), rsp.Params.ServiceIdx)
	assert.Equal(t, []uint16{1, 2, 3, 4}, rsp.Handles)

	// A second registration continues from where the first stopped.
	require.NoError(t, hostEnd.Send(registerFrame(t, 8, heartRateAttrs()[:2])))
	frames = sink.snapshot()
	require.Len(t, frames, 2)
	rsp, err = nble.DecodeRegisterRsp(frames[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5, 6}, rsp.Handles)
}

func TestRegisterRejectsEmptyService(t *testing.T) {
	hostEnd, sink := newRig(t, nil)

	frame, err := nble.EncodeRegisterReq(nble.RegisterParams{ServiceIdx: 0, AttrCount: 0}, nil)
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	frames := sink.snapshot()
	require.Len(t, frames, 1)
	rsp, err := nble.DecodeRegisterRsp(frames[0].Payload)
	require.NoError(t, err)
	assert.False(t, rsp.Status.OK())
	assert.Empty(t, rsp.Handles)

	// A follow-up discover must survive the rejected registration and
	// answer with just the end-of-results batch.
	frame, err = nble.EncodeDiscoverReq(nble.DiscoverParams{
		ConnHandle: 1,
		Type:       nble.DiscoverPrimary,
		Range:      nble.HandleRange{Start: 1, End: 0xFFFF},
	})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	frames = sink.snapshot()[1:]
	require.Len(t, frames, 1)
	disc, err := nble.DecodeDiscoverRsp(frames[0].Payload)
	require.NoError(t, err)
	assert.True(t, disc.Status.OK())
	assert.Empty(t, disc.Attrs)
}

func TestScenarioForcesFailStatus(t *testing.T) {
	sc := DefaultScenario()
	sc.FailStatus = map[string]int32{"read": 0x0a}
	hostEnd, sink := newRig(t, sc)

	require.NoError(t, hostEnd.Send(nble.EncodeReadReq(nble.ReadParams{
		ConnHandle: 3, CharHandle: 0x20,
	})))

	frames := sink.snapshot()
	require.Len(t, frames, 1)
	rsp, err := nble.DecodeReadRsp(frames[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, nble.Status(0x0a), rsp.Status)
	assert.Equal(t, uint16(3), rsp.ConnHandle)
}

func TestScenarioDropsResponses(t *testing.T) {
	sc := DefaultScenario()
	sc.Drop = []string{"svc_changed"}
	hostEnd, sink := newRig(t, sc)

	require.NoError(t, hostEnd.Send(nble.EncodeSvcChangedReq(nble.SvcChangedParams{
		ConnHandle: 1,
		Range:      nble.HandleRange{Start: 1, End: 10},
	})))

	assert.Empty(t, sink.snapshot())
}

func TestSetGetAttributeRoundTrip(t *testing.T) {
	hostEnd, sink := newRig(t, nil)

	frame, err := nble.EncodeSetAttributeReq(nble.SetAttributeParams{ValueHandle: 0x10}, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))
	require.NoError(t, hostEnd.Send(nble.EncodeGetAttributeReq(nble.GetAttributeParams{ValueHandle: 0x10})))

	frames := sink.snapshot()
	require.Len(t, frames, 2)
	rsp, err := nble.DecodeGetAttributeRsp(frames[1].Payload)
	require.NoError(t, err)
	assert.True(t, rsp.Status.OK())
	assert.Equal(t, []byte{1, 2, 3}, rsp.Data)
}

func TestReadRejectsOutOfRangeOffset(t *testing.T) {
	hostEnd, sink := newRig(t, nil)

	frame, err := nble.EncodeSetAttributeReq(nble.SetAttributeParams{ValueHandle: 0x20}, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	require.NoError(t, hostEnd.Send(nble.EncodeReadReq(nble.ReadParams{
		ConnHandle: 1, CharHandle: 0x20, Offset: 4,
	})))

	frames := sink.snapshot()
	require.Len(t, frames, 2)
	rsp, err := nble.DecodeReadRsp(frames[1].Payload)
	require.NoError(t, err)
	assert.False(t, rsp.Status.OK())
	assert.Empty(t, rsp.Data)

	// Offset equal to the value length is the last legal position and
	// yields an empty success read.
	require.NoError(t, hostEnd.Send(nble.EncodeReadReq(nble.ReadParams{
		ConnHandle: 1, CharHandle: 0x20, Offset: 3,
	})))
	frames = sink.snapshot()
	require.Len(t, frames, 3)
	rsp, err = nble.DecodeReadRsp(frames[2].Payload)
	require.NoError(t, err)
	assert.True(t, rsp.Status.OK())
	assert.Empty(t, rsp.Data)
}

func TestDiscoverStreamsBatchesWithTerminator(t *testing.T) {
	sc := DefaultScenario()
	sc.BatchSize = 1
	hostEnd, sink := newRig(t, sc)

	require.NoError(t, hostEnd.Send(registerFrame(t, 0, heartRateAttrs())))

	frame, err := nble.EncodeDiscoverReq(nble.DiscoverParams{
		ConnHandle: 2,
		Type:       nble.DiscoverDescriptor,
		Range:      nble.HandleRange{Start: 1, End: 0xFFFF},
	})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	frames := sink.snapshot()[1:] // skip the register response
	// Two descriptor-eligible attrs at batch size 1, plus the empty
	// end-of-results batch.
	require.Len(t, frames, 3)

	var attrs []nble.DiscoveredAttr
	for i, f := range frames {
		rsp, err := nble.DecodeDiscoverRsp(f.Payload)
		require.NoError(t, err)
		assert.True(t, rsp.Status.OK())
		assert.Equal(t, uint16(2), rsp.ConnHandle)
		if i == len(frames)-1 {
			assert.Empty(t, rsp.Attrs)
		}
		attrs = append(attrs, rsp.Attrs...)
	}
	require.Len(t, attrs, 2)
	desc, ok := attrs[0].(nble.Descriptor)
	require.True(t, ok)
	assert.Equal(t, "2a37", desc.UUID)
}

func TestDiscoverPrimaryReportsServiceRange(t *testing.T) {
	hostEnd, sink := newRig(t, nil)
	require.NoError(t, hostEnd.Send(registerFrame(t, 0, heartRateAttrs())))

	frame, err := nble.EncodeDiscoverReq(nble.DiscoverParams{
		ConnHandle: 1,
		Type:       nble.DiscoverPrimary,
		UUID:       "180d",
		Range:      nble.HandleRange{Start: 1, End: 0xFFFF},
	})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	frames := sink.snapshot()[1:]
	require.Len(t, frames, 2)
	rsp, err := nble.DecodeDiscoverRsp(frames[0].Payload)
	require.NoError(t, err)
	require.Len(t, rsp.Attrs, 1)
	svc, ok := rsp.Attrs[0].(nble.PrimaryService)
	require.True(t, ok)
	assert.Equal(t, "180d", svc.UUID)
	assert.Equal(t, nble.HandleRange{Start: 1, End: 4}, svc.Range)
}

func TestWriteCommandHasNoResponse(t *testing.T) {
	hostEnd, sink := newRig(t, nil)

	frame, err := nble.EncodeWriteReq(nble.WriteParams{
		ConnHandle: 4, CharHandle: 0x22, WithResp: false,
	}, []byte{0xAA})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	assert.Empty(t, sink.snapshot())

	frame, err = nble.EncodeWriteReq(nble.WriteParams{
		ConnHandle: 4, CharHandle: 0x22, WithResp: true,
	}, []byte{0xBB, 0xCC})
	require.NoError(t, err)
	require.NoError(t, hostEnd.Send(frame))

	frames := sink.snapshot()
	require.Len(t, frames, 1)
	rsp, err := nble.DecodeWriteRsp(frames[0].Payload)
	require.NoError(t, err)
	assert.True(t, rsp.Status.OK())
	assert.Equal(t, uint16(2), rsp.Len)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"batch_size: 5\nfail_status:\n  write: 14\ndrop: [notify]\n"), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 5, sc.BatchSize)
	assert.Equal(t, uint16(1), sc.HandleBase) // default survives
	assert.Equal(t, nble.Status(14), sc.status("write", 0))
	assert.True(t, sc.drops("notify"))
	assert.False(t, sc.drops("read"))

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
