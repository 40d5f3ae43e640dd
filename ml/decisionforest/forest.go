package decisionforest

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// TrainingConfig carries the forest hyperparameters. Zero values
// fall back to the package defaults.
type TrainingConfig struct {
	NumTrees    int
	MaxDepth    int
	MinLeafSize int
	// Seed makes tree construction reproducible; every tree derives
	// its own random source from Seed so parallel builds stay
	// deterministic.
	Seed int64
}

const (
	defaultNumTrees    = 100
	defaultMaxDepth    = 25
	defaultMinLeafSize = 1
)

// A Forest votes a class id across several decision trees.
type Forest struct {
	Trees []DecisionTree `json:"trees"`
	// FeatureSize is the length of feature vectors processed by this forest
	FeatureSize int `json:"feature_size"`
	// NumClasses is the number of target classes seen at training time
	NumClasses int `json:"num_classes"`
	// Importances holds the mean decrease in Gini impurity per
	// feature, averaged over all trees
	Importances []float64 `json:"importances"`
}

// Train fits a random forest over x against integer class targets y.
// Trees are grown in parallel, each over its own bootstrap sample,
// considering sqrt(p) random features per split.
func Train(x [][]float64, y []int, numClasses int, cfg TrainingConfig) (*Forest, error) {
	if len(x) == 0 {
		return nil, errors.New("cannot train a forest on zero rows")
	}
	if len(x) != len(y) {
		return nil, errors.Errorf("feature rows (%d) and targets (%d) differ in length", len(x), len(y))
	}
	if numClasses < 1 {
		return nil, errors.New("cannot train a forest without target classes")
	}
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = defaultNumTrees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.MinLeafSize <= 0 {
		cfg.MinLeafSize = defaultMinLeafSize
	}

	featureSize := len(x[0])
	forest := &Forest{
		Trees:       make([]DecisionTree, cfg.NumTrees),
		FeatureSize: featureSize,
		NumClasses:  numClasses,
		Importances: make([]float64, featureSize),
	}

	perTreeImportances := make([][]float64, cfg.NumTrees)

	var eg errgroup.Group
	for i := range forest.Trees {
		i := i
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
			importance := make([]float64, featureSize)
			tree := growTree(x, y, numClasses, cfg, rng, importance)
			forest.Trees[i] = *tree
			perTreeImportances[i] = importance
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, importance := range perTreeImportances {
		for j, v := range importance {
			forest.Importances[j] += v
		}
	}
	for j := range forest.Importances {
		forest.Importances[j] /= float64(cfg.NumTrees)
	}

	return forest, nil
}

// Vote tallies each tree's classification of x into a per-class
// vote-fraction distribution.
func (f *Forest) Vote(x []float64) []float64 {
	votes := make([]float64, f.NumClasses)
	for i := range f.Trees {
		votes[f.Trees[i].Classify(x)]++
	}
	for c := range votes {
		votes[c] /= float64(len(f.Trees))
	}
	return votes
}

// Classify returns the majority-vote class id for x.
func (f *Forest) Classify(x []float64) int {
	votes := f.Vote(x)
	best := 0
	for c, v := range votes {
		if v > votes[best] {
			best = c
		}
	}
	return best
}

// treeGrower holds the shared state of one tree's construction.
type treeGrower struct {
	x          [][]float64
	y          []int
	numClasses int
	maxDepth   int
	minLeaf    int
	mtry       int
	rng        *rand.Rand
	importance []float64
	total      float64
	tree       *DecisionTree
}

func growTree(x [][]float64, y []int, numClasses int, cfg TrainingConfig, rng *rand.Rand, importance []float64) *DecisionTree {
	n := len(x)
	featureSize := len(x[0])

	// bootstrap sample, with replacement
	samples := make([]int, n)
	for i := range samples {
		samples[i] = rng.Intn(n)
	}

	mtry := int(math.Sqrt(float64(featureSize)))
	if mtry < 1 {
		mtry = 1
	}

	g := &treeGrower{
		x:          x,
		y:          y,
		numClasses: numClasses,
		maxDepth:   cfg.MaxDepth,
		minLeaf:    cfg.MinLeafSize,
		mtry:       mtry,
		rng:        rng,
		importance: importance,
		total:      float64(n),
		tree:       &DecisionTree{FeatureSize: featureSize},
	}
	g.grow(samples, 1)
	return g.tree
}

// grow recursively builds the subtree over samples and returns the
// index of the created node (into Nodes, or Outputs for a leaf).
func (g *treeGrower) grow(samples []int, depth int) (int, bool) {
	counts := g.classCounts(samples)

	if depth > g.maxDepth || len(samples) < 2*g.minLeaf || isPure(counts) {
		return g.leaf(counts), true
	}

	feature, threshold, gain, left, right := g.bestSplit(samples, counts)
	if feature < 0 {
		return g.leaf(counts), true
	}

	// mean-decrease-in-impurity contribution, weighted by the
	// fraction of the bootstrap sample reaching this node
	g.importance[feature] += gain * float64(len(samples)) / g.total

	if depth > g.tree.Depth {
		g.tree.Depth = depth
	}

	nodeIndex := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{FeatureIndex: feature, Threshold: threshold})

	leftIndex, leftIsLeaf := g.grow(left, depth+1)
	g.tree.Nodes[nodeIndex].LeftChild = leftIndex
	g.tree.Nodes[nodeIndex].LeftIsLeaf = leftIsLeaf

	rightIndex, rightIsLeaf := g.grow(right, depth+1)
	g.tree.Nodes[nodeIndex].RightChild = rightIndex
	g.tree.Nodes[nodeIndex].RightIsLeaf = rightIsLeaf

	return nodeIndex, false
}

func (g *treeGrower) leaf(counts []int) int {
	majority := 0
	for c, count := range counts {
		if count > counts[majority] {
			majority = c
		}
	}
	index := len(g.tree.Outputs)
	g.tree.Outputs = append(g.tree.Outputs, majority)
	return index
}

func (g *treeGrower) classCounts(samples []int) []int {
	counts := make([]int, g.numClasses)
	for _, s := range samples {
		counts[g.y[s]]++
	}
	return counts
}

func isPure(counts []int) bool {
	seen := 0
	for _, c := range counts {
		if c > 0 {
			seen++
		}
	}
	return seen <= 1
}

func giniImpurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

// bestSplit searches mtry random features for the threshold with
// the largest Gini gain. A negative feature index means no valid
// split exists.
func (g *treeGrower) bestSplit(samples []int, counts []int) (int, float64, float64, []int, []int) {
	n := len(samples)
	parentImpurity := giniImpurity(counts, n)

	bestFeature := -1
	var bestThreshold, bestGain float64
	var bestSplitAt int
	bestOrder := make([]int, 0)

	order := make([]int, n)
	for _, f := range g.rng.Perm(g.tree.FeatureSize)[:g.mtry] {
		copy(order, samples)
		sort.Slice(order, func(i, j int) bool {
			return g.x[order[i]][f] < g.x[order[j]][f]
		})

		leftCounts := make([]int, g.numClasses)
		for i := 1; i < n; i++ {
			leftCounts[g.y[order[i-1]]]++

			prev, cur := g.x[order[i-1]][f], g.x[order[i]][f]
			if prev == cur {
				continue
			}
			if i < g.minLeaf || n-i < g.minLeaf {
				continue
			}

			rightCounts := make([]int, g.numClasses)
			for c := range counts {
				rightCounts[c] = counts[c] - leftCounts[c]
			}

			childImpurity := (float64(i)*giniImpurity(leftCounts, i) +
				float64(n-i)*giniImpurity(rightCounts, n-i)) / float64(n)

			if gain := parentImpurity - childImpurity; gain > bestGain {
				bestFeature = f
				bestThreshold = (prev + cur) / 2
				bestGain = gain
				bestSplitAt = i
				bestOrder = append(bestOrder[:0], order...)
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0, nil, nil
	}

	left := make([]int, bestSplitAt)
	right := make([]int, n-bestSplitAt)
	copy(left, bestOrder[:bestSplitAt])
	copy(right, bestOrder[bestSplitAt:])
	return bestFeature, bestThreshold, bestGain, left, right
}
