package main

import (
	"github.com/ksstormnet/cme-content-worker-sub001/cmd"
)

func main() {
	cmd.Execute()
}
