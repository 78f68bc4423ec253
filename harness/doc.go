// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package harness trains byte-level language models.
//
// The harness owns the data and the loop; the model is a collaborator behind
// the Model interface. A run reads a (possibly compressed) corpus, splits it
// once into training and validation segments, samples random windows from
// each, and runs a fixed number of optimizer steps with gradient
// accumulation, gradient clipping, periodic validation and periodic sample
// generation. At the end it writes the validation loss curve, the raw loss
// history and optionally a checkpoint.
//
// Basic usage with the reference byte model:
//
//	cfg := harness.DefaultConfig()
//	cfg.Data.Path = "./data/enwik8.gz"
//
//	res, err := harness.Run(ctx, cfg, harness.Options{Logger: logger})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Artifacts.Plot)
//
// Plugging in another model:
//
//	type myModel struct{ ... } // implements harness.Model
//
//	res, err := harness.Run(ctx, cfg, harness.Options{Model: &myModel{}})
//
// A Model returns a *Loss from Forward; in Train mode the loss carries a
// backward function that accumulates gradients into the model's
// *Parameter values, which the harness's optimizer then updates.
package harness
