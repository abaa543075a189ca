package categorizer

import "math"

// Cluster groups embedding vectors into k clusters with Lloyd's k-means and
// returns one cluster index per input vector. The first k vectors seed the
// centroids, so results are deterministic for a given input order.
//
// Clustering is advisory: it offers a cheap grouping signal alongside LLM
// categorization, for example to batch similar facts before categorizing.
func Cluster(embeddings [][]float64, k int) []int {
	assignments := make([]int, len(embeddings))
	if len(embeddings) == 0 || k <= 1 {
		return assignments
	}
	if k > len(embeddings) {
		k = len(embeddings)
	}
	dims := len(embeddings[0])

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), embeddings[i]...)
	}

	const maxIterations = 50
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, vec := range embeddings {
			best := nearestCentroid(vec, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, vec := range embeddings {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dims && d < len(vec); d++ {
				sums[c][d] += vec[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dims; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return assignments
}

func nearestCentroid(vec []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		var dist float64
		for d := 0; d < len(c) && d < len(vec); d++ {
			diff := vec[d] - c[d]
			dist += diff * diff
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}
