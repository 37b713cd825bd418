package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/FlavioCFOliveira/HSUnmix/internal/baseline"
	"github.com/FlavioCFOliveira/HSUnmix/internal/config"
	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/layer"
	"github.com/FlavioCFOliveira/HSUnmix/internal/loss"
	"github.com/FlavioCFOliveira/HSUnmix/internal/matfile"
	"github.com/FlavioCFOliveira/HSUnmix/internal/opt"
	"github.com/FlavioCFOliveira/HSUnmix/internal/render"
	"github.com/FlavioCFOliveira/HSUnmix/internal/report"
	"github.com/FlavioCFOliveira/HSUnmix/internal/unmix"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Names of the arrays in estimate.mat.
const (
	estimateAbundances = "abundancesEstimate"
	estimateEndmembers = "endmembersEstimate"
	kmeansEndmembers   = "endmembersKMeans"
)

func run(cfg config.Config, logger logrus.FieldLogger) error {
	device, err := layer.SelectDevice(cfg.Device)
	if err != nil {
		return err
	}
	logger.WithField("action", "device_select").WithField("device", device.String()).
		Info("using device")

	scene, err := dataset.Load(cfg.Data, cfg.Variables)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"action":     "dataset_load",
		"path":       cfg.Data,
		"cube":       scene.Cube.String(),
		"abundances": scene.Abundances.String(),
		"endmembers": matShape(scene.Endmembers),
	}).Info("scene loaded and normalised")
	logger.WithField("action", "dataset_load").WithField("maxima", scene.Maxima).
		Debug("normalisation maxima")

	ds := dataset.New(scene, device)
	sample, err := ds.Get(0)
	if err != nil {
		return err
	}

	bands, endmembers := scene.Bands(), scene.NumEndmembers()
	model, err := unmix.New(bands, endmembers, device, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"action":     "model_init",
		"bands":      bands,
		"endmembers": endmembers,
		"params":     model.NumParams(),
		"seed":       cfg.Seed,
	}).Info("model initialised")
	var summary strings.Builder
	model.Summary(&summary)
	logger.WithField("action", "model_init").Debug("\n" + summary.String())

	logger.WithField("action", "loss_init").WithField("abundance", "rmse").
		WithField("signature", "sad").Info("loss functions initialised")

	optimizer, err := opt.New(cfg.Optimizer, cfg.LearningRate, model.Parameters()...)
	if err != nil {
		return err
	}
	logger.WithField("action", "optimizer_init").WithField("optimizer", cfg.Optimizer).
		WithField("learning_rate", optimizer.LearningRate()).Info("optimizer initialised")

	if !cfg.Evaluate && !cfg.Baseline.Enabled && cfg.OutputDir == "" {
		return nil
	}

	out, err := model.Forward(sample.Image)
	if err != nil {
		return err
	}
	eval, err := unmix.Evaluate(out, sample)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"action":         "evaluate",
		"abundance_rmse": eval.AbundanceRMSE,
		"mean_sad":       eval.MeanSAD,
	}).Info("untrained model scored against ground truth")
	for i, a := range eval.SAD {
		logger.WithField("action", "evaluate").WithField("endmember", i).WithField("sad", a).Debug("spectral angle")
	}

	var kmeans *mat.Dense
	var kmeansSAD []float64
	if cfg.Baseline.Enabled {
		res, err := baseline.KMeans(sample.Image, endmembers, baseline.Options{
			MaxSamples: cfg.Baseline.MaxSamples,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		assign, angles, err := baseline.Match(res.Endmembers, sample.Endmembers)
		if err != nil {
			return err
		}
		kmeans, kmeansSAD = baseline.Reorder(res.Endmembers, assign), angles
		logger.WithFields(logrus.Fields{
			"action":   "baseline_kmeans",
			"samples":  res.Samples,
			"mean_sad": loss.MeanAngle(angles),
		}).Info("k-means baseline scored against ground truth")
	}

	if cfg.OutputDir == "" {
		return nil
	}
	return writeOutputs(cfg.OutputDir, out, sample, eval, kmeans, kmeansSAD, logger)
}

func writeOutputs(dir string, out unmix.Output, sample dataset.Sample, eval unmix.Evaluation,
	kmeans *mat.Dense, kmeansSAD []float64, logger logrus.FieldLogger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", dir)
	}

	palette := render.Palette(out.Abundances.C)
	written, err := render.SaveAbundances(dir, out.Abundances, palette)
	if err != nil {
		return err
	}

	sigPath := filepath.Join(dir, "signatures.png")
	if err := render.SaveSignaturePlot(sigPath, out.Signatures, sample.Endmembers, palette); err != nil {
		return err
	}
	written = append(written, sigPath)

	reportPath := filepath.Join(dir, "report.csv")
	rep := report.Report{Model: eval.SAD, Baseline: kmeansSAD, AbundanceRMSE: eval.AbundanceRMSE}
	if err := rep.WriteFile(reportPath); err != nil {
		return err
	}
	written = append(written, reportPath)

	arrays, err := estimateArrays(out, kmeans)
	if err != nil {
		return err
	}
	matPath := filepath.Join(dir, "estimate.mat")
	if err := matfile.WriteFile(matPath, matfile.Options{Compress: true, Description: "unmixing estimate"}, arrays...); err != nil {
		return err
	}
	written = append(written, matPath)

	logger.WithField("action", "write_outputs").WithField("files", written).Info("outputs written")
	return nil
}

// estimateArrays lays the estimates out like the input file: abundances as
// (H, W, E) and signatures as (E, B), both column-major.
func estimateArrays(out unmix.Output, kmeans *mat.Dense) ([]*matfile.Array, error) {
	a := out.Abundances
	abund, err := matfile.NewArray(estimateAbundances, []int{a.H, a.W, a.C}, a.ColumnMajorHWC())
	if err != nil {
		return nil, err
	}
	arrays := []*matfile.Array{abund}

	sigs := map[string]*mat.Dense{estimateEndmembers: out.Signatures}
	names := []string{estimateEndmembers}
	if kmeans != nil {
		sigs[kmeansEndmembers] = kmeans
		names = append(names, kmeansEndmembers)
	}
	for _, name := range names {
		m := sigs[name]
		e, b := m.Dims()
		colMajor := mat.NewDense(b, e, nil)
		colMajor.Copy(m.T())
		arr, err := matfile.NewArray(name, []int{e, b}, colMajor.RawMatrix().Data)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, arr)
	}
	return arrays, nil
}

func matShape(m mat.Matrix) string {
	r, c := m.Dims()
	return fmt.Sprintf("(%d, %d)", r, c)
}
