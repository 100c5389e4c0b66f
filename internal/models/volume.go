package models

import "fmt"

// Volume represents a 3D image or mask volume assembled from 2D slices
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	// (idx = z*Width*Height + y*Width + x)
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the number of slices
	Depth int
}

// NewVolume allocates a zero filled volume
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Index returns the flat index of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the voxel value at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Len is the number of voxels
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// CheckSameShape returns an error when o does not have the dimensions of v
func (v *Volume) CheckSameShape(o *Volume) error {
	if v.Width != o.Width || v.Height != o.Height || v.Depth != o.Depth {
		return fmt.Errorf("volume shape %dx%dx%d does not match %dx%dx%d",
			v.Width, v.Height, v.Depth, o.Width, o.Height, o.Depth)
	}
	return nil
}
