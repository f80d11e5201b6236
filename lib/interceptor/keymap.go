// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package interceptor

// Key codes from linux/input-event-codes.h, mapped to the canonical
// key names the policy layer uses. Codes absent from this map are
// forwarded without chord tracking (media keys, mouse buttons and so
// on cannot participate in a blocked combination).
var keyNames = map[uint16]string{
	1:   "esc",
	2:   "1",
	3:   "2",
	4:   "3",
	5:   "4",
	6:   "5",
	7:   "6",
	8:   "7",
	9:   "8",
	10:  "9",
	11:  "0",
	12:  "-",
	13:  "=",
	14:  "backspace",
	15:  "tab",
	16:  "q",
	17:  "w",
	18:  "e",
	19:  "r",
	20:  "t",
	21:  "y",
	22:  "u",
	23:  "i",
	24:  "o",
	25:  "p",
	28:  "enter",
	29:  "ctrl",
	30:  "a",
	31:  "s",
	32:  "d",
	33:  "f",
	34:  "g",
	35:  "h",
	36:  "j",
	37:  "k",
	38:  "l",
	42:  "shift",
	44:  "z",
	45:  "x",
	46:  "c",
	47:  "v",
	48:  "b",
	49:  "n",
	50:  "m",
	54:  "shift",
	56:  "alt",
	57:  "space",
	59:  "f1",
	60:  "f2",
	61:  "f3",
	62:  "f4",
	63:  "f5",
	64:  "f6",
	65:  "f7",
	66:  "f8",
	67:  "f9",
	68:  "f10",
	87:  "f11",
	88:  "f12",
	97:  "ctrl",
	100: "alt",
	102: "home",
	103: "up",
	105: "left",
	106: "right",
	107: "end",
	108: "down",
	104: "pageup",
	109: "pagedown",
	110: "insert",
	111: "del",
	119: "pause",
	125: "meta",
	126: "meta",
	127: "menu",
	99:  "printscreen",
}
