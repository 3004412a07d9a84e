// SPDX-License-Identifier: EPL-2.0

// Package metrics counts job outcomes and capture health for a batch run.
// A batch is short lived, so the metrics are written to a file at exit
// rather than served.
package metrics
