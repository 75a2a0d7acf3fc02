package cnv

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic sidecar files.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cnv: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Metadata is the sidecar written next to disassembled output. It preserves
// what assembly comments cannot carry reliably: the verbatim header, the
// import table, and the label map the disassembler assigned.
type Metadata struct {
	Slot    int            `cbor:"slot"`
	Header  Header         `cbor:"header"`
	Imports []Import       `cbor:"imports"`
	Labels  map[string]int `cbor:"labels"`
}

// NewMetadata captures a conversation's sidecar metadata. The label map is
// the same one Disassemble renders.
func NewMetadata(c *Conversation) (*Metadata, error) {
	instructions, err := DecodeCode(c.Code)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]int)
	for addr, name := range CodeLabels(instructions) {
		labels[name] = addr
	}
	return &Metadata{
		Slot:    c.Slot,
		Header:  c.Header,
		Imports: c.Imports,
		Labels:  labels,
	}, nil
}

// Apply copies the sidecar's header and import table onto a conversation,
// typically one freshly assembled from edited source.
func (m *Metadata) Apply(c *Conversation) {
	c.Slot = m.Slot
	c.Header = m.Header
	c.Imports = append([]Import(nil), m.Imports...)
}

// MarshalMetadata serializes a Metadata sidecar to CBOR bytes.
func MarshalMetadata(m *Metadata) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalMetadata deserializes a Metadata sidecar from CBOR bytes.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cnv: unmarshal metadata: %w", err)
	}
	return &m, nil
}
