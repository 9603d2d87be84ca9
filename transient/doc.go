// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from HTTP request execution as
// transient or non-transient, and judges whether a failed attempt is
// worth retrying on a fresh connection. The engine's recovery logic is
// built on this judgment, and it is also handy for bucketing error
// metrics.
//
// Package transient is lightweight, depending only on standard library
// packages, so it can be imported standalone without bringing any
// significant dependencies.
package transient
