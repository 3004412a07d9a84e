// SPDX-License-Identifier: EPL-2.0

// Package codec runs audio through a neural codec round trip.
//
// A Handle owns the single model of the process and serializes access to it:
// the target bandwidth is a model-wide setting, so setting it and running the
// model happen under one lock.
//
//	h := codec.NewHandle(encodec.Loader(encodec.Options{}))
//	r := codec.NewReencoder(h, logger)
//	err := r.Reencode(ctx, "x_rerecord.wav", "x_clean.wav", 12)
//
// The input is converted to the model's native layout, processed in one
// shot and written as 24-bit PCM at the model rate. Memory use grows with
// the input length.
package codec
