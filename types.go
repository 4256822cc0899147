package bft

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// View is a number that uniquely identifies a view within an epoch.
type View uint64

// GenesisView is the view of the genesis QC of every epoch.
const GenesisView View = 0

// Next returns the view following v.
func (v View) Next() View {
	return v + 1
}

// Number returns the view as a plain integer.
func (v View) Number() uint64 {
	return uint64(v)
}

// ToBytes returns the view as bytes.
func (v View) ToBytes() []byte {
	var viewBytes [8]byte
	binary.LittleEndian.PutUint64(viewBytes[:], uint64(v))
	return viewBytes[:]
}

// Epoch is a number identifying the period governed by one validator set.
type Epoch uint64

// ToBytes returns the epoch as bytes.
func (e Epoch) ToBytes() []byte {
	var epochBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], uint64(e))
	return epochBytes[:]
}

// EpochView is a view qualified by the epoch it belongs to.
type EpochView struct {
	Epoch Epoch
	View  View
}

// Less reports whether ev is ordered before other.
func (ev EpochView) Less(other EpochView) bool {
	if ev.Epoch != other.Epoch {
		return ev.Epoch < other.Epoch
	}
	return ev.View < other.View
}

func (ev EpochView) String() string {
	return fmt.Sprintf("%d:%d", ev.Epoch, ev.View)
}

// Hash is a SHA256 hash
type Hash [32]byte

func (h Hash) String() string {
	return base64.StdEncoding.EncodeToString(h[:])
}

// Command is a client request to be executed by the state machine.
//
// The string type is used because it is immutable and can hold arbitrary bytes of any length.
type Command string

// PublicKey holds the raw bytes of a validator's public key.
//
// The string type is used for the same reason as for Command: it is immutable and comparable,
// so it can be used as a map key and compared byte-wise.
type PublicKey string

// Bytes returns the raw key bytes.
func (k PublicKey) Bytes() []byte {
	return []byte(k)
}

// Compare compares the raw key bytes lexicographically.
func (k PublicKey) Compare(other PublicKey) int {
	return bytes.Compare([]byte(k), []byte(other))
}

func (k PublicKey) String() string {
	if len(k) > 6 {
		return hex.EncodeToString([]byte(k[:6]))
	}
	return hex.EncodeToString([]byte(k))
}

// QuorumCert is a certificate showing that a quorum of validators voted for a vertex in some view.
// The liveness core only looks at the view it certifies.
type QuorumCert struct {
	epoch  Epoch
	view   View
	vertex Hash
}

// NewQuorumCert creates a new quorum cert for the given epoch, view and vertex.
func NewQuorumCert(epoch Epoch, view View, vertex Hash) QuorumCert {
	return QuorumCert{epoch: epoch, view: view, vertex: vertex}
}

// Epoch returns the epoch the certificate was formed in.
func (qc QuorumCert) Epoch() Epoch {
	return qc.epoch
}

// View returns the view that the certificate certifies.
func (qc QuorumCert) View() View {
	return qc.view
}

// Vertex returns the hash of the certified vertex.
func (qc QuorumCert) Vertex() Hash {
	return qc.vertex
}

func (qc QuorumCert) String() string {
	return fmt.Sprintf("QC{epoch: %d, view: %d, vertex: %.6s}", qc.epoch, qc.view, qc.vertex)
}

// HighQC is the highest quorum certificate known to a node.
type HighQC struct {
	Highest QuorumCert
}

// View returns the view certified by the highest QC.
func (h HighQC) View() View {
	return h.Highest.View()
}

// Proposal is a leader's proposal for a view.
type Proposal struct {
	Epoch     Epoch
	View      View
	Proposer  PublicKey
	HighQC    HighQC
	Command   Command
	Signature []byte
}

// Hash returns the hash that the proposer signs.
func (p Proposal) Hash() Hash {
	return hashOf(p.Epoch.ToBytes(), p.View.ToBytes(), p.Proposer.Bytes(), p.HighQC.Highest.vertex[:], []byte(p.Command))
}

// Vote is a validator's vote for a proposal, sent to the leader of the next view.
type Vote struct {
	Epoch     Epoch
	View      View
	Voter     PublicKey
	Vertex    Hash
	Signature []byte
}

// Hash returns the hash that the voter signs.
func (v Vote) Hash() Hash {
	return hashOf(v.Epoch.ToBytes(), v.View.ToBytes(), v.Voter.Bytes(), v.Vertex[:])
}

// EpochView returns the epoch and view the vote was cast in.
func (v Vote) EpochView() EpochView {
	return EpochView{Epoch: v.Epoch, View: v.View}
}
