package stats

import "math"

// Normal-inverse-gamma prior hyperparameters for the marginal likelihoods.
// Weak enough that a handful of replicates dominates the posterior.
const (
	priorMu    = 0.0
	priorKappa = 1.0
	priorAlpha = 1.0
	priorBeta  = 1.0
)

// BayesDifferentialProb returns the posterior probability that two replicate
// samples were drawn from different Gaussians rather than a shared one,
// comparing marginal likelihoods under equal model priors. Inputs are
// expected on a log scale. Empty input on either side gives 0.5 (no
// evidence either way).
func BayesDifferentialProb(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}

	pooled := make([]float64, 0, len(a)+len(b))
	pooled = append(pooled, a...)
	pooled = append(pooled, b...)

	logSame := logMarginalLikelihood(pooled)
	logDiff := logMarginalLikelihood(a) + logMarginalLikelihood(b)

	// logistic of the log Bayes factor
	return 1 / (1 + math.Exp(logSame-logDiff))
}

// logMarginalLikelihood integrates the Gaussian likelihood over the
// normal-inverse-gamma prior in closed form.
func logMarginalLikelihood(z []float64) float64 {
	n := float64(len(z))
	mean := Mean(z)

	ss := 0.0
	for _, v := range z {
		d := v - mean
		ss += d * d
	}

	kappaN := priorKappa + n
	alphaN := priorAlpha + n/2
	betaN := priorBeta + ss/2 + priorKappa*n*(mean-priorMu)*(mean-priorMu)/(2*kappaN)

	lgAlphaN, _ := math.Lgamma(alphaN)
	lgAlpha0, _ := math.Lgamma(priorAlpha)

	return lgAlphaN - lgAlpha0 +
		priorAlpha*math.Log(priorBeta) - alphaN*math.Log(betaN) +
		0.5*(math.Log(priorKappa)-math.Log(kappaN)) -
		(n/2)*math.Log(2*math.Pi)
}
