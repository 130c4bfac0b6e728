// Package permission implements the POSIX rwx effective-permission check
// (spec §4.3). It is deliberately small and side-effect free: callers pass
// in the inode's mode/uid/gid and the caller's effective uid/gid.
package permission

import "golang.org/x/sys/unix"

// Access mode bits, aliasing the stable unix values.
const (
	F_OK = unix.F_OK
	R_OK = unix.R_OK
	W_OK = unix.W_OK
	X_OK = unix.X_OK
)

// Caller carries the effective identity an operation is being performed
// as.
type Caller struct {
	Uid, Gid uint32
}

// IsRoot reports whether the caller is uid 0.
func (c Caller) IsRoot() bool { return c.Uid == 0 }

// Effective computes the effective rwx triplet (0-7) of mode for the given
// caller against an inode owned by (ownerUid, ownerGid): owner bits if the
// caller is the owner, plus group bits if the caller is in the group,
// plus other bits always (spec §4.3).
func Effective(mode uint32, ownerUid, ownerGid uint32, caller Caller) uint32 {
	perm := mode & 0o777
	var eff uint32
	if caller.Uid == ownerUid {
		eff |= (perm >> 6) & 0o7
	}
	if caller.Gid == ownerGid {
		eff |= (perm >> 3) & 0o7
	}
	eff |= perm & 0o7
	return eff
}

// Access reports whether caller may exercise requested (a combination of
// R_OK/W_OK/X_OK) against an inode with the given mode/owner. uid == 0
// does not auto-grant here (spec §4.3 / Open Questions): "The _access
// check does not short-circuit on uid == 0; callers that need root
// override must gate at the call site."
func Access(mode uint32, ownerUid, ownerGid uint32, caller Caller, requested uint32) bool {
	eff := Effective(mode, ownerUid, ownerGid, caller)
	return eff&requested == requested
}

// RequiresRootChown reports whether changing ownership of a file owned by
// ownerUid requires the caller to be root (spec §4.3: "uid == 0 ... is
// required for chown of a file not owned by self").
func RequiresRootChown(ownerUid uint32, caller Caller) bool {
	return caller.Uid != ownerUid
}

// RequiresRootChmod reports whether chmod-ing a file owned by ownerUid
// requires the caller to be root.
func RequiresRootChmod(ownerUid uint32, caller Caller) bool {
	return caller.Uid != ownerUid
}
