package policy

import (
	"fmt"
	"math"

	"github.com/hisaki/rlrl/network"
	ts "github.com/hisaki/rlrl/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Bounds of the log standard deviation of squashed Gaussian policies
const (
	MinLogStd float64 = -20
	MaxLogStd float64 = 2
)

// Offset of 1 - tanh(u)² inside the log of the tanh correction
const squashOffset float64 = 1e-6

// NewSquashedGaussianNet returns the TreeMLP of a squashed Gaussian
// policy. The root network has ReLU hidden layers. The two leaves are
// single linear layers predicting the mean and log standard deviation
// of the Gaussian respectively.
func NewSquashedGaussianNet(features, actionDims, batch int,
	g *G.ExprGraph, prefix string, hiddenSizes []int,
	init G.InitWFn) (*network.TreeMLP, error) {
	biases := make([]bool, len(hiddenSizes))
	for i := range biases {
		biases[i] = true
	}

	net, err := network.NewTreeMLP(features, batch, actionDims, g, prefix,
		hiddenSizes, biases, network.ReLUs(len(hiddenSizes)),
		[][]int{{}, {}}, [][]bool{{}, {}}, [][]*network.Activation{{}, {}},
		init)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussianNet: %v", err)
	}
	return net, nil
}

// SquashedGaussianNodes holds the nodes of a squashed Gaussian policy
// built on a network predicting means and log standard deviations.
//
// Given standard normal noise ε in the Noise input node, the policy
// computes u = μ + σε and Action = tanh(u). LogProb holds the log
// density of each action, a vector with one element per batch row.
// Since the noise is an input, gradients flow through the sampled
// actions. Setting the noise to 0 gives the greedy action tanh(μ).
type SquashedGaussianNodes struct {
	Noise   *G.Node
	Mean    *G.Node
	LogStd  *G.Node
	Action  *G.Node
	LogProb *G.Node
}

// NewSquashedGaussianNodes adds the nodes of a squashed Gaussian
// policy to the graph of net, which must predict the mean and log
// standard deviation in its first and second outputs.
func NewSquashedGaussianNodes(net network.NeuralNet) (SquashedGaussianNodes,
	error) {
	if len(net.Prediction()) != 2 {
		return SquashedGaussianNodes{}, fmt.Errorf("newSquashedGaussianNodes: "+
			"expected network with 2 outputs, got %v", len(net.Prediction()))
	}
	g := net.Graph()
	mean := net.Prediction()[0]
	rawLogStd := net.Prediction()[1]

	noise := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(mean.Shape()...),
		G.WithName(net.Prefix()+"Noise"),
		G.WithInit(G.Zeroes()),
	)

	// Clamp the log standard deviation to [MinLogStd, MaxLogStd]:
	// lo + relu(x - lo) - relu(x - hi)
	lo := G.NewConstant(MinLogStd)
	hi := G.NewConstant(MaxLogStd)
	aboveLo := G.Must(G.Rectify(G.Must(G.Sub(rawLogStd, lo))))
	aboveHi := G.Must(G.Rectify(G.Must(G.Sub(rawLogStd, hi))))
	logStd := G.Must(G.Add(lo, G.Must(G.Sub(aboveLo, aboveHi))))

	std := G.Must(G.Exp(logStd))
	u := G.Must(G.Add(mean, G.Must(G.HadamardProd(std, noise))))
	action := G.Must(G.Tanh(u))

	// log N(u; μ, σ) = -ε²/2 - log σ - log(2π)/2
	negHalf := G.NewConstant(-0.5)
	logNormal := G.Must(G.HadamardProd(negHalf, G.Must(G.Square(noise))))
	logNormal = G.Must(G.Sub(logNormal, logStd))
	logNormal = G.Must(G.Sub(logNormal, G.NewConstant(0.5*math.Log(2*math.Pi))))

	// Change of variables through tanh
	onePlusOffset := G.NewConstant(1 + squashOffset)
	correction := G.Must(G.Log(G.Must(G.Sub(onePlusOffset,
		G.Must(G.Square(action))))))

	logProb := G.Must(G.Sub(logNormal, correction))
	logProb = G.Must(G.Sum(logProb, 1))

	return SquashedGaussianNodes{
		Noise:   noise,
		Mean:    mean,
		LogStd:  logStd,
		Action:  action,
		LogProb: logProb,
	}, nil
}

// Noise samples standard normal noise for squashed Gaussian policies
type Noise struct {
	normal *distmv.Normal
	dims   int
}

// NewNoise returns a new Noise sampler for dims dimensional actions
func NewNoise(dims int, seed uint64) (*Noise, error) {
	means := make([]float64, dims)
	ones := make([]float64, dims)
	for i := range ones {
		ones[i] = 1.0
	}

	normal, ok := distmv.NewNormal(means, mat.NewDiagDense(dims, ones),
		rand.NewSource(seed))
	if !ok {
		return nil, fmt.Errorf("newNoise: could not create standard normal")
	}
	return &Noise{normal: normal, dims: dims}, nil
}

// Sample returns rows samples of noise in row-major order
func (n *Noise) Sample(rows int) []float64 {
	samples := make([]float64, 0, rows*n.dims)
	for i := 0; i < rows; i++ {
		samples = append(samples, n.normal.Rand(nil)...)
	}
	return samples
}

// SquashedGaussian implements a squashed Gaussian policy for action
// selection. In training mode, actions are sampled. In evaluation mode,
// the policy acts greedily with tanh(μ).
type SquashedGaussian struct {
	net        network.NeuralNet
	nodes      SquashedGaussianNodes
	vm         G.VM
	noise      *Noise
	actionVal  G.Value
	actionDims int
	eval       bool
}

// NewSquashedGaussian returns a new SquashedGaussian policy which
// selects actions using net. The network must have a batch size of 1
// and own its input node.
func NewSquashedGaussian(net network.NeuralNet,
	seed uint64) (*SquashedGaussian, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newSquashedGaussian: action selection "+
			"requires a batch size of 1 \n\twant(1) \n\thave(%v)",
			net.BatchSize())
	}

	nodes, err := NewSquashedGaussianNodes(net)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: %v", err)
	}

	noise, err := NewNoise(net.Outputs(), seed)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: %v", err)
	}

	s := &SquashedGaussian{
		net:        net,
		nodes:      nodes,
		noise:      noise,
		actionDims: net.Outputs(),
	}
	G.Read(nodes.Action, &s.actionVal)
	s.vm = G.NewTapeMachine(net.Graph())

	return s, nil
}

// SelectAction selects and returns an action at the argument timestep
// t.
func (s *SquashedGaussian) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs := t.Observation.RawVector().Data
	if err := s.net.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}

	var noise []float64
	if s.eval {
		noise = make([]float64, s.actionDims)
	} else {
		noise = s.noise.Sample(1)
	}
	if err := network.SetValue(s.nodes.Noise, noise); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set noise: %v", err))
	}

	if err := s.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer s.vm.Reset()

	return mat.NewVecDense(s.actionDims, network.Values(s.actionVal))
}

// Network returns the network of the policy
func (s *SquashedGaussian) Network() network.NeuralNet {
	return s.net
}

// Eval sets the policy to evaluation mode
func (s *SquashedGaussian) Eval() { s.eval = true }

// Train sets the policy to training mode
func (s *SquashedGaussian) Train() { s.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (s *SquashedGaussian) IsEval() bool { return s.eval }

// Close closes the policy's VM
func (s *SquashedGaussian) Close() error {
	return s.vm.Close()
}
