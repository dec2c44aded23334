package main

import (
	"github.com/shinyvision/phpinfer/internal/commands"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	commonlog.Configure(1, nil)
	commands.Execute()
}
