// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package channel

// capabilities lists the pins that may be routed to a timer channel,
// with the alternate function selecting that route.
var capabilities = []Capability{
	{Timer: "TIM1", Channel: C1, Pin: PA(8), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C2, Pin: PA(9), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C3, Pin: PA(10), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C4, Pin: PA(11), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C1, Pin: PE(9), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C2, Pin: PE(11), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C3, Pin: PE(13), Mode: Alternate, AF: AF1},
	{Timer: "TIM1", Channel: C4, Pin: PE(14), Mode: Alternate, AF: AF1},

	{Timer: "TIM2", Channel: C1, Pin: PA(0), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C2, Pin: PA(1), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C3, Pin: PA(2), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C4, Pin: PA(3), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C1, Pin: PA(5), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C1, Pin: PA(15), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C2, Pin: PB(3), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C3, Pin: PB(10), Mode: Alternate, AF: AF1},
	{Timer: "TIM2", Channel: C4, Pin: PB(11), Mode: Alternate, AF: AF1},

	{Timer: "TIM3", Channel: C1, Pin: PA(6), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C2, Pin: PA(7), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C3, Pin: PB(0), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C4, Pin: PB(1), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C1, Pin: PB(4), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C2, Pin: PB(5), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C1, Pin: PC(6), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C2, Pin: PC(7), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C3, Pin: PC(8), Mode: Alternate, AF: AF2},
	{Timer: "TIM3", Channel: C4, Pin: PC(9), Mode: Alternate, AF: AF2},

	{Timer: "TIM4", Channel: C1, Pin: PB(6), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C2, Pin: PB(7), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C3, Pin: PB(8), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C4, Pin: PB(9), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C1, Pin: PD(12), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C2, Pin: PD(13), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C3, Pin: PD(14), Mode: Alternate, AF: AF2},
	{Timer: "TIM4", Channel: C4, Pin: PD(15), Mode: Alternate, AF: AF2},

	{Timer: "TIM5", Channel: C1, Pin: PA(0), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C2, Pin: PA(1), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C3, Pin: PA(2), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C4, Pin: PA(3), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C1, Pin: PH(10), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C2, Pin: PH(11), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C3, Pin: PH(12), Mode: Alternate, AF: AF2},
	{Timer: "TIM5", Channel: C4, Pin: PI(0), Mode: Alternate, AF: AF2},

	{Timer: "TIM8", Channel: C1, Pin: PC(6), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C2, Pin: PC(7), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C3, Pin: PC(8), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C4, Pin: PC(9), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C1, Pin: PI(5), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C2, Pin: PI(6), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C3, Pin: PI(7), Mode: Alternate, AF: AF3},
	{Timer: "TIM8", Channel: C4, Pin: PI(2), Mode: Alternate, AF: AF3},

	{Timer: "TIM9", Channel: C1, Pin: PE(5), Mode: Alternate, AF: AF3},
	{Timer: "TIM9", Channel: C2, Pin: PE(6), Mode: Alternate, AF: AF3},

	{Timer: "TIM10", Channel: C1, Pin: PB(8), Mode: Alternate, AF: AF3},
	{Timer: "TIM10", Channel: C1, Pin: PF(6), Mode: Alternate, AF: AF3},

	{Timer: "TIM11", Channel: C1, Pin: PB(9), Mode: Alternate, AF: AF3},
	{Timer: "TIM11", Channel: C1, Pin: PF(7), Mode: Alternate, AF: AF3},
}
