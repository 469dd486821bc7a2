package dyneval

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/ezachrisen/dyneval/scriptapi"
)

// scriptapiPath is the import path scripts use for the entry capability.
const scriptapiPath = "github.com/ezachrisen/dyneval/scriptapi"

// Symbols exposes the scriptapi package to interpreted source. It is part of
// the fixed minimal reference set every compilation receives.
var Symbols = interp.Exports{
	scriptapiPath + "/scriptapi": {
		"Base":       reflect.ValueOf((*scriptapi.Base)(nil)),
		"Capability": reflect.ValueOf((*scriptapi.Capability)(nil)),
		"Env":        reflect.ValueOf((*scriptapi.Env)(nil)),
		"Sink":       reflect.ValueOf((*scriptapi.Sink)(nil)),

		"_Capability": reflect.ValueOf((*_scriptapi_Capability)(nil)),
	},
}

// _scriptapi_Capability lets interpreted types satisfy scriptapi.Capability
// when they cross into compiled code.
type _scriptapi_Capability struct {
	IValue interface{}
	WEnv   func() *scriptapi.Env
	WLog   func(msg string)
}

func (W _scriptapi_Capability) Env() *scriptapi.Env { return W.WEnv() }
func (W _scriptapi_Capability) Log(msg string)      { W.WLog(msg) }
