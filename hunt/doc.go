// Package hunt implements bisection-based identification of a member who leaks
// role-gated content into a public channel.
//
// # Overview
//
// A guild gates some channels behind one or more roles. Someone holding such a
// role forwards what they see to an outside channel. There are no audit logs, so
// the only way to find them is to manipulate access and watch the outside
// channel:
//
//  1. The Registry enumerates every member holding a qualifying role and
//     remembers the roles each one held before the session started.
//  2. Each round the Controller splits the suspect pool into two contiguous
//     halves (the first half takes the extra member on odd sizes), revokes the
//     second half through the Toggler, posts a uniquely tagged canary through
//     the ProbeService and waits for the tag on the leak channel with the
//     Observer.
//  3. If the canary surfaces, the leaker kept access and is in the first half.
//     If it does not, the leaker lost access and is in the second half.
//  4. When one suspect remains the confirmation stage revokes everybody else,
//     makes sure the suspect holds access, and runs one more probe.
//
// # Access state
//
// Role mutation is the only externally visible side effect and it must converge
// back to the original state on every exit path. Each round restores the half it
// revoked before the pool is narrowed, and the session always finishes with
// Registry.RestoreAll, which re-adds only the roles this session removed. Calling
// it again issues no further requests.
//
// # Ordering and cancellation
//
// Within a round the steps are strictly sequential: toggle, settle, probe,
// observe, restore. Role mutations and probe delivery run on a context detached
// from cancellation so that a stop request never interrupts a call midway; the
// settle delay and the observation wait return as soon as the session context is
// cancelled.
//
// # Transport
//
// The package does not talk to any network itself. Everything goes through the
// Platform interface; see package discord for the production implementation and
// MockPlatform for an in-memory one.
package hunt
