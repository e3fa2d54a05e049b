// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"math"
	"sort"

	"github.com/pdiddy/citeguard/pkg/types"
)

// Category names used in reports and group assignment.
const (
	CategoryHighlyConnected = "highly_connected"
	CategoryBridge          = "bridge"
	CategoryCore            = "core"
	CategoryCoupling        = "bibliographic_coupling"
	CategoryTangential      = "tangential"
)

// metrics holds the structural scores computed over the expanded graph.
type metrics struct {
	Network    types.NetworkStats
	Categories map[string][]string
}

// computeMetrics scores the literature pool: weak components for
// fragmentation, multi-source BFS distance to the key set minimized over
// edge direction, Brandes betweenness and closeness on the directed
// adjacency, and a tangential blend over the manuscript's own references.
// Each category keeps the top 10 percent by its metric, minimum one.
func computeMetrics(
	g *litGraph,
	keyNodes map[string]struct{},
	originalNodes map[string]struct{},
	originalRefIDByNode map[string]string,
	citeCountsByRefID map[string]int,
) metrics {
	nodeList := sortedKeys(g.nodes)

	outAdj := make(map[string]map[string]struct{}, len(nodeList))
	inAdj := make(map[string]map[string]struct{}, len(nodeList))
	for _, n := range nodeList {
		outAdj[n] = make(map[string]struct{})
		inAdj[n] = make(map[string]struct{})
	}
	for _, e := range g.edges {
		if _, ok := outAdj[e.Src]; !ok {
			continue
		}
		if _, ok := outAdj[e.Dst]; !ok {
			continue
		}
		if _, dup := outAdj[e.Src][e.Dst]; dup {
			continue
		}
		outAdj[e.Src][e.Dst] = struct{}{}
		inAdj[e.Dst][e.Src] = struct{}{}
	}

	inDegree := make(map[string]int, len(nodeList))
	weakAdj := make(map[string]map[string]struct{}, len(nodeList))
	for _, n := range nodeList {
		inDegree[n] = len(inAdj[n])
		weakAdj[n] = make(map[string]struct{}, len(outAdj[n])+len(inAdj[n]))
		for nb := range outAdj[n] {
			weakAdj[n][nb] = struct{}{}
		}
		for nb := range inAdj[n] {
			weakAdj[n][nb] = struct{}{}
		}
	}

	componentID := make(map[string]int, len(nodeList))
	componentSizes := make(map[int]int)
	cid := 0
	for _, n := range nodeList {
		if _, ok := componentID[n]; ok {
			continue
		}
		cid++
		size := 0
		queue := []string{n}
		componentID[n] = cid
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			size++
			for nb := range weakAdj[cur] {
				if _, ok := componentID[nb]; ok {
					continue
				}
				componentID[nb] = cid
				queue = append(queue, nb)
			}
		}
		componentSizes[cid] = size
	}
	largestComponent := 0
	for _, size := range componentSizes {
		if size > largestComponent {
			largestComponent = size
		}
	}

	// Directed distance to the key set, minimized over in/out direction.
	distFromKeyOut := multiSourceBFS(outAdj, keyNodes)
	distFromKeyIn := multiSourceBFS(inAdj, keyNodes)
	distToKey := make(map[string]int)
	if len(keyNodes) > 0 {
		for _, n := range nodeList {
			a, okA := distFromKeyOut[n]
			b, okB := distFromKeyIn[n]
			switch {
			case okA && okB:
				if b < a {
					a = b
				}
				distToKey[n] = a
			case okA:
				distToKey[n] = a
			case okB:
				distToKey[n] = b
			}
		}
	}

	betweenness := betweennessCentrality(outAdj, nodeList)
	// Closeness walks incoming edges, so heavily cited works score high.
	closeness := closenessCentrality(inAdj, nodeList)

	topN := int(math.Ceil(float64(len(nodeList)) * 0.10))
	if topN < 1 {
		topN = 1
	}

	couplingCounts := make(map[string]float64, len(nodeList))
	for _, n := range nodeList {
		count := 0
		for nb := range outAdj[n] {
			if _, ok := originalNodes[nb]; ok {
				count++
			}
		}
		if count > 0 {
			couplingCounts[n] = float64(count)
		}
	}

	inDegreeScores := make(map[string]float64, len(nodeList))
	for n, d := range inDegree {
		inDegreeScores[n] = float64(d)
	}

	categories := map[string][]string{
		CategoryHighlyConnected: topByScore(inDegreeScores, topN),
		CategoryBridge:          topByScore(betweenness, topN),
		CategoryCore:            topByScore(closeness, topN),
		CategoryCoupling:        topByScore(couplingCounts, topN),
	}

	// Tangential scoring runs only over the manuscript's own references.
	maxInDeg := 0
	for _, d := range inDegree {
		if d > maxInDeg {
			maxInDeg = d
		}
	}
	if maxInDeg == 0 {
		maxInDeg = 1
	}
	maxCites := 0
	for _, c := range citeCountsByRefID {
		if c > maxCites {
			maxCites = c
		}
	}
	if maxCites == 0 {
		maxCites = 1
	}

	tangentialScores := make(map[string]float64)
	for nodeID := range originalNodes {
		if _, ok := g.nodes[nodeID]; !ok {
			continue
		}
		citeCt := citeCountsByRefID[originalRefIDByNode[nodeID]]
		compSize := componentSizes[componentID[nodeID]]
		if compSize == 0 {
			compSize = 1
		}
		compRatio := float64(compSize) / float64(max(1, largestComponent))

		distScore := 1.0
		if d, ok := distToKey[nodeID]; ok {
			if d > 6 {
				d = 6
			}
			distScore = float64(d) / 6.0
		}

		tangentialScores[nodeID] = 0.60*distScore +
			0.25*(1.0-compRatio) +
			0.10*(1.0-float64(inDegree[nodeID])/float64(maxInDeg)) +
			0.05*(1.0-float64(citeCt)/float64(maxCites))
	}
	tangentialTop := int(math.Ceil(float64(len(tangentialScores)) * 0.10))
	if tangentialTop < 1 {
		tangentialTop = 1
	}
	categories[CategoryTangential] = topByScore(tangentialScores, tangentialTop)

	return metrics{
		Network: types.NetworkStats{
			Nodes:            len(nodeList),
			Edges:            len(g.edges),
			Components:       len(componentSizes),
			LargestComponent: largestComponent,
			NodesTruncated:   g.hitMaxNodes,
			EdgesTruncated:   g.hitMaxEdges,
		},
		Categories: categories,
	}
}

func multiSourceBFS(adj map[string]map[string]struct{}, sources map[string]struct{}) map[string]int {
	dist := make(map[string]int)
	if len(sources) == 0 {
		return dist
	}
	var queue []string
	for _, s := range sortedKeys(sources) {
		if _, ok := adj[s]; !ok {
			continue
		}
		dist[s] = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for nb := range adj[cur] {
			if _, ok := dist[nb]; ok {
				continue
			}
			dist[nb] = dist[cur] + 1
			queue = append(queue, nb)
		}
	}
	return dist
}

// betweennessCentrality is Brandes' algorithm for an unweighted directed
// graph. Scores are raw accumulations, not normalized.
func betweennessCentrality(adj map[string]map[string]struct{}, nodeList []string) map[string]float64 {
	betw := make(map[string]float64, len(nodeList))
	for _, v := range nodeList {
		betw[v] = 0.0
	}

	for _, s := range nodeList {
		stack := make([]string, 0, len(nodeList))
		pred := make(map[string][]string)
		sigma := map[string]float64{s: 1.0}
		dist := map[string]int{s: 0}

		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range sortedKeys(adj[v]) {
				if _, seen := dist[w]; !seen {
					queue = append(queue, w)
					dist[w] = dist[v] + 1
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				if sigma[w] != 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1.0 + delta[w])
				}
			}
			if w != s {
				betw[w] += delta[w]
			}
		}
	}
	return betw
}

// closenessCentrality on the directed adjacency, scaled by the reachable
// share of the graph (Wasserman-Faust).
func closenessCentrality(adj map[string]map[string]struct{}, nodeList []string) map[string]float64 {
	closeness := make(map[string]float64, len(nodeList))
	n := len(nodeList)
	for _, s := range nodeList {
		dist := map[string]int{s: 0}
		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for w := range adj[v] {
				if _, ok := dist[w]; ok {
					continue
				}
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
		}
		reachable := len(dist)
		if reachable <= 1 {
			closeness[s] = 0.0
			continue
		}
		totalDist := 0
		for _, d := range dist {
			totalDist += d
		}
		if totalDist <= 0 {
			closeness[s] = 0.0
			continue
		}
		base := float64(reachable-1) / float64(totalDist)
		closeness[s] = base * (float64(reachable-1) / float64(max(1, n-1)))
	}
	return closeness
}

// topByScore returns the n highest-scoring ids, ties broken by id so the
// selection is deterministic.
func topByScore(scores map[string]float64, n int) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
