// Command cagewatch checks a schedule page for newly listed keywords.
package main

import (
	"github.com/JakeFAU/cagewatch/cmd"
)

func main() {
	cmd.Execute()
}
