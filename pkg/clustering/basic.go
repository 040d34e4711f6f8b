package clustering

import (
	"fociclust/pkg/geometry"
	"fociclust/pkg/labelmask"
)

// BasicClustering groups objects by proximity. The binarized object mask is
// blurred with sigma = width/BlurDivisor and thresholded at BasicThreshold
// of its maximum; each connected region of the result is one cluster.
// An object joins the region covering most of its voxels (ties to the
// lower region id); objects outside every region join the region whose
// centroid is nearest. The returned mask holds dense cluster ids 1..k on
// the object voxels.
func (c *Clusterer) BasicClustering(objects *labelmask.Mask) (*labelmask.Mask, int, error) {
	objs, err := ObjectsFromMask(objects)
	if err != nil {
		return nil, 0, err
	}
	out := labelmask.New(objects.Width, objects.Height, objects.Depth)
	if len(objs) == 0 {
		return out, 0, nil
	}

	sigma := float64(objects.Width) / c.params.BlurDivisor
	blurred := objects.Binarize().GaussianBlur(sigma)
	peak := 0.0
	for _, v := range blurred {
		peak = max(peak, v)
	}
	regions, r := objects.Threshold(blurred, peak*c.params.BasicThreshold).Components()

	centroids := make([]geometry.Point3D, r)
	counts := make([]int, r)
	regions.ForEach(func(x, y, z, v int) {
		if v == 0 {
			return
		}
		centroids[v-1] = centroids[v-1].Add(geometry.Point3D{X: float64(x), Y: float64(y), Z: float64(z)})
		counts[v-1]++
	})
	for i := range centroids {
		centroids[i] = centroids[i].Scale(1 / float64(counts[i]))
	}
	index := geometry.NewNearestIndex(centroids)

	ids := make([]int, len(objs)+1)
	for i, vote := range majorityVotes(objects, regions, len(objs)) {
		if vote == 0 {
			nearest, _ := index.Nearest(objs[i].Centroid)
			vote = nearest + 1
		}
		ids[i+1] = vote
	}
	for i, v := range objects.Data {
		if v != 0 {
			out.Data[i] = ids[v]
		}
	}
	k := out.Relabel()
	return out, k, nil
}
