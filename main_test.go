// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import "testing"

func TestMain(m *testing.M) {
	LibraryInit()
	m.Run()
}
