package vmm

// Invalidate flushes any cached translation for va from the TLB. On real
// x86_64 hardware this is the INVLPG instruction; talus has no assembly
// stub wired in yet, so this is the single seam a platform layer attaches
// to.
var Invalidate = func(va uintptr) {}

// SetInvalidator installs the platform hook Invalidate calls. Tests use
// this to count invalidations without touching real hardware state.
func SetInvalidator(f func(va uintptr)) {
	Invalidate = f
}
