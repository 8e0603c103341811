package core

// resource_authzone.go – the per-frame proof stack used for
// authorization checks. Every call frame gets its own
// auth zone; virtual signature proofs (one per transaction signer) are
// seeded into the root auth zone at transaction start and are visible
// to every descendant zone through the parent chain, while proofs
// explicitly pushed by a frame are visible only within that frame and
// its children.

import (
	"fmt"
)

// AuthZone is a LIFO stack of proofs plus a link to the parent frame's
// zone, so a child frame can see everything its ancestors pushed
// without those proofs being copied.
type AuthZone struct {
	proofs []*Proof
	parent *AuthZone

	// signature holds the virtual signature proofs seeded into the root
	// zone at transaction start (one per transaction signer). They are
	// never poppable — Pop works the explicit proof stack only — but they
	// are visible to auth checks and proof composition until an explicit
	// clear_signature_proofs instruction drops them.
	signature []*Proof

	// previewMode and simulated implement preview-mode simulated proofs:
	// a preview execution can assert "assume the signer holds these
	// resources" without a real signature or lock, so the auth module
	// sees them but the fee reserve and resource subsystem never do.
	previewMode bool
	simulated   map[NodeId]struct{}
}

func NewRootAuthZone(signatureProofs []*Proof) *AuthZone {
	return &AuthZone{signature: signatureProofs}
}

func NewChildAuthZone(parent *AuthZone) *AuthZone {
	return &AuthZone{parent: parent}
}

// Push adds a proof to this zone.
func (z *AuthZone) Push(p *Proof) { z.proofs = append(z.proofs, p) }

// Pop removes and returns the most recently pushed proof in this zone
// only (not the parent chain) — popping never reaches into an ancestor
// zone, since the ancestor's frame may still be relying on it.
func (z *AuthZone) Pop() (*Proof, error) {
	if len(z.proofs) == 0 {
		return nil, &ApplicationError{Frame: "AuthZone.Pop", Err: fmt.Errorf("auth zone is empty")}
	}
	p := z.proofs[len(z.proofs)-1]
	z.proofs = z.proofs[:len(z.proofs)-1]
	return p, nil
}

// Clear drops every proof resident in this zone (not ancestors, not
// the virtual signature proofs — those need ClearSignatureProofs).
func (z *AuthZone) Clear() {
	for _, p := range z.proofs {
		p.Drop()
	}
	z.proofs = nil
}

// ClearSignatureProofs drops the virtual signature proofs seeded at
// transaction start. A manifest calls this before handing control to
// untrusted code so downstream frames cannot act under the signers'
// authority.
func (z *AuthZone) ClearSignatureProofs() {
	for _, p := range z.signature {
		p.Drop()
	}
	z.signature = nil
}

// allVisible walks this zone and every ancestor, most-local first,
// with each zone's explicit stack ahead of its signature proofs.
func (z *AuthZone) allVisible() []*Proof {
	var out []*Proof
	for zone := z; zone != nil; zone = zone.parent {
		out = append(out, zone.proofs...)
		out = append(out, zone.signature...)
	}
	return out
}

// CreateProofOfAmount finds resident/ancestor proofs of resource and
// composes exactly amount of evidence from them, without removing the
// originals from the zone. Proofs consumed in full are cloned
// (sharing their existing locks by refcount); the final, only
// partially-needed proof draws just its needed sub-amount via
// LockSubAmount instead of a full Clone, so the composed proof's
// Amount is exactly what was requested, never the full amount of the
// last proof it happened to touch.
func (z *AuthZone) CreateProofOfAmount(newId NodeId, resource NodeId, amount Decimal) (*Proof, error) {
	remaining := amount
	var parts []*Proof
	for _, p := range z.allVisible() {
		if remaining.IsZero() {
			break
		}
		if p.Resource != resource || p.Kind != ResourceFungible {
			continue
		}
		if p.Amount.LessThan(remaining) || p.Amount.Equal(remaining) {
			parts = append(parts, p.Clone(newId))
			remaining = remaining.Sub(p.Amount)
			continue
		}
		part, err := p.LockSubAmount(newId, remaining)
		if err != nil {
			return nil, &ApplicationError{Frame: "AuthZone.CreateProof", Err: err}
		}
		parts = append(parts, part)
		remaining = DecimalZero()
	}
	if !remaining.IsZero() {
		return nil, &ApplicationError{Frame: "AuthZone.CreateProof", Err: ErrInsufficientBaseProofs}
	}
	return ComposeProofs(newId, parts)
}

// SimulateProofs marks the zone as preview-mode and seeds a set of
// resources the auth module should treat as present, without creating
// any real Proof or locking any Bucket/Vault. Only RuleRequireResource
// checks consult this set; fee consumption and resource-subsystem
// invariants are entirely unaffected.
func (z *AuthZone) SimulateProofs(resources []NodeId) {
	z.previewMode = true
	z.simulated = make(map[NodeId]struct{}, len(resources))
	for _, r := range resources {
		z.simulated[r] = struct{}{}
	}
}

func (z *AuthZone) hasSimulated(resource NodeId) bool {
	for zone := z; zone != nil; zone = zone.parent {
		if zone.simulated != nil {
			if _, ok := zone.simulated[resource]; ok {
				return true
			}
		}
	}
	return false
}

//---------------------------------------------------------------------
// Access rules
//---------------------------------------------------------------------

// AccessRuleKind distinguishes the ways an access rule can be satisfied.
type AccessRuleKind uint8

const (
	RuleRequireResource AccessRuleKind = iota
	RuleAllOf
	RuleAnyOf
	RuleCountOf
	RuleAllowAll
	RuleDenyAll
)

// AccessRule is a composable authorization predicate over an AuthZone's
// visible proofs.
type AccessRule struct {
	Kind     AccessRuleKind
	Resource NodeId        // RuleRequireResource
	Rules    []AccessRule  // RuleAllOf / RuleAnyOf / RuleCountOf
	Count    int           // RuleCountOf
}

// Satisfies evaluates the rule against a zone's visible proofs.
func (r AccessRule) Satisfies(z *AuthZone) (bool, error) {
	switch r.Kind {
	case RuleAllowAll:
		return true, nil
	case RuleDenyAll:
		return false, nil
	case RuleRequireResource:
		if z.hasSimulated(r.Resource) {
			return true, nil
		}
		for _, p := range z.allVisible() {
			if p.Resource == r.Resource && !p.Amount.IsZero() {
				return true, nil
			}
			if p.Resource == r.Resource && len(p.Ids) > 0 {
				return true, nil
			}
		}
		return false, nil
	case RuleAllOf:
		for _, sub := range r.Rules {
			ok, err := sub.Satisfies(z)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case RuleAnyOf:
		for _, sub := range r.Rules {
			ok, err := sub.Satisfies(z)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case RuleCountOf:
		satisfied := 0
		for _, sub := range r.Rules {
			ok, err := sub.Satisfies(z)
			if err != nil {
				return false, err
			}
			if ok {
				satisfied++
			}
		}
		return satisfied >= r.Count, nil
	default:
		return false, fmt.Errorf("resource_authzone: unknown access rule kind %d", r.Kind)
	}
}
