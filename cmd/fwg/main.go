/*
Copyright © 2025 the fwg authors.
This file is part of fwg.

fwg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

fwg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with fwg.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command fwg is a command-line interface for morphing EPW weather files
// with the FutureWeatherGenerator tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dsanchez-garcia/fwg/fwgutil"
)

func main() {
	// Interrupting stops the running tool before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := fwgutil.Root.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
