package redis

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/jobtrack/job"
)

// Codec encodes the state-specific part of a record.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores details as JSON, readable with redis-cli.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec stores details as MessagePack, which is smaller for large
// results.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                       { return "msgpack" }
func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// codecFor returns the codec a record was written with, falling back to
// the store's own codec for unknown or missing names.
func (s *Store) codecFor(name string) Codec {
	switch name {
	case s.codec.Name():
		return s.codec
	case JSONCodec{}.Name():
		return JSONCodec{}
	case MsgpackCodec{}.Name():
		return MsgpackCodec{}
	default:
		return s.codec
	}
}

// statusDetail is the encoded form of whatever a Status variant carries.
type statusDetail struct {
	Progress *job.Progress `json:"progress,omitempty" msgpack:"progress,omitempty"`
	Result   []byte        `json:"result,omitempty" msgpack:"result,omitempty"`
	Failure  *job.Failure  `json:"failure,omitempty" msgpack:"failure,omitempty"`
}

func encodeStatus(c Codec, st job.Status) ([]byte, error) {
	var d statusDetail
	switch v := st.(type) {
	case job.InProgress:
		p := v.Progress
		d.Progress = &p
	case job.Succeeded:
		d.Result = v.Result
	case job.Failed:
		f := v.Failure
		d.Failure = &f
	default:
		return nil, nil
	}
	return c.Marshal(d)
}

func decodeStatus(c Codec, state job.State, data []byte) (job.Status, error) {
	var d statusDetail
	if len(data) > 0 {
		if err := c.Unmarshal(data, &d); err != nil {
			return nil, err
		}
	}
	switch state {
	case job.StateProgress:
		var p job.Progress
		if d.Progress != nil {
			p = *d.Progress
		}
		return job.InProgress{Progress: p}, nil
	case job.StateSuccess:
		return job.Succeeded{Result: d.Result}, nil
	case job.StateFailure:
		var f job.Failure
		if d.Failure != nil {
			f = *d.Failure
		}
		return job.Failed{Failure: f}, nil
	default:
		return job.Pending{}, nil
	}
}
