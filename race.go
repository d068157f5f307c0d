// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package tpdio

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrency-stress scenarios that trigger
// false positives: the TPD's cooperative spinlock protocol establishes
// happens-before across separate variables via acquire/release atomics,
// which the race detector cannot observe.
const RaceEnabled = true
