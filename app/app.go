package dsapp

import (
	appbase "github.com/warptools/dsmeta/app/base"
	_ "github.com/warptools/dsmeta/app/dataset"
)

var App = appbase.App
