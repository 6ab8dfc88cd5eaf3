package biz

import "math"

// similarityEpsilon 防止零向量导致除零。
const similarityEpsilon = 1e-10

// CosineSimilarity 返回 dot(a,b) / (‖a‖·‖b‖ + ε)。
// 任一向量为空或长度不一致时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + similarityEpsilon)
}

// BestMatch 返回得分最高的候选下标及得分，得分相同时取靠前者。
// 没有候选时返回 -1, 0。
func BestMatch(query []float32, candidates []Embedding) (int, float64) {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := CosineSimilarity(query, c)
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
