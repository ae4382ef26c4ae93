package voxel

// View is the read-only world context consulted by visibility and
// exploration reads. The world loop owns the live value and hands copies to
// readers.
type View struct {
	// MaxViewingLevel is the fog-of-war cutoff; voxels with Y strictly below
	// it are visible.
	MaxViewingLevel int
	FogOfWar        bool
}
