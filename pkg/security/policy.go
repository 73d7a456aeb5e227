package security

import (
	"fmt"
	"strings"
)

// Flags selects the verification steps of a Policy.
type Flags struct {
	// VerifyData checks the signature over the data.
	VerifyData bool
	// VerifySigner checks the signing certificate and its issuer link.
	VerifySigner bool
	// VerifyChain checks every link of the signing chain.
	VerifyChain bool
	// VerifyRoot checks that the chain ends in a valid self-signed root.
	VerifyRoot bool
	// OnlyTrusted requires the root to be in the trust store.
	OnlyTrusted bool
	// OnlySigned rejects packages with unsigned files.
	OnlySigned bool
}

// Policy is a named, immutable set of verification steps.
type Policy struct {
	name  string
	flags Flags
}

// NewPolicy returns a custom policy.
func NewPolicy(name string, flags Flags) Policy {
	return Policy{name: name, flags: flags}
}

// The canonical policies in ascending strictness.
var (
	NoSecurity = NewPolicy("NoSecurity", Flags{})

	AlmostNoSecurity = NewPolicy("AlmostNoSecurity", Flags{
		VerifyData: true,
	})

	LowSecurity = NewPolicy("LowSecurity", Flags{
		VerifyData:   true,
		VerifySigner: true,
	})

	MediumSecurity = NewPolicy("MediumSecurity", Flags{
		VerifyData:   true,
		VerifySigner: true,
		VerifyChain:  true,
		OnlySigned:   true,
	})

	HighSecurity = NewPolicy("HighSecurity", Flags{
		VerifyData:   true,
		VerifySigner: true,
		VerifyChain:  true,
		VerifyRoot:   true,
		OnlyTrusted:  true,
		OnlySigned:   true,
	})
)

// Policies lists the canonical policies in ascending strictness.
func Policies() []Policy {
	return []Policy{NoSecurity, AlmostNoSecurity, LowSecurity, MediumSecurity, HighSecurity}
}

// PolicyByName returns the canonical policy with the given name. The
// comparison ignores case.
func PolicyByName(name string) (Policy, error) {
	for _, p := range Policies() {
		if strings.EqualFold(p.name, name) {
			return p, nil
		}
	}
	return Policy{}, fmt.Errorf("unknown security policy %q", name)
}

func (p Policy) Name() string       { return p.name }
func (p Policy) Flags() Flags       { return p.flags }
func (p Policy) VerifyData() bool   { return p.flags.VerifyData }
func (p Policy) VerifySigner() bool { return p.flags.VerifySigner }
func (p Policy) VerifyChain() bool  { return p.flags.VerifyChain }
func (p Policy) VerifyRoot() bool   { return p.flags.VerifyRoot }
func (p Policy) OnlyTrusted() bool  { return p.flags.OnlyTrusted }
func (p Policy) OnlySigned() bool   { return p.flags.OnlySigned }

// checksTrust reports whether the root must be found in the trust store.
func (p Policy) checksTrust() bool {
	return p.flags.VerifyRoot || p.flags.OnlyTrusted
}

// needsChain reports whether any step inspects the certificate chain.
func (p Policy) needsChain() bool {
	f := p.flags
	return f.VerifyData || f.VerifySigner || f.VerifyChain || p.checksTrust()
}

func (p Policy) String() string {
	return fmt.Sprintf("%s%+v", p.name, p.flags)
}
