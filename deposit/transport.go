package deposit

import (
	"github.com/meridianbank/depositflow/bank"
	"github.com/meridianbank/depositflow/decision"
	"github.com/meridianbank/depositflow/process"
	"github.com/shopspring/decimal"
)

// TransportTableName is the decision table that picks a transport to
// get home by what is left in the client's wallet.
const TransportTableName = "choose-transport-to-home"

// NewTransportEvaluator returns an evaluator that serves the
// transport-to-home table.
func NewTransportEvaluator() *decision.TableEvaluator {
	return decision.NewTableEvaluator(TransportTable())
}

// TransportTable maps the client's wallet balance to a transportToHome
// mode. Band upper bounds are inclusive; a missing wallet counts as an
// empty one.
func TransportTable() decision.Table {
	return decision.Table{
		Name: TransportTableName,
		Rules: []decision.Rule{
			transportRule(10, "walking"),
			transportRule(20, "cityBus"),
			transportRule(30, "metro"),
			transportRule(40, "taxi"),
			{
				Outputs: process.Variables{VarTransportToHome: "rentCar"},
			},
		},
	}
}

func transportRule(upTo int64, mode string) decision.Rule {
	bound := decimal.NewFromInt(upTo)

	return decision.Rule{
		Matches: func(vars process.Variables) bool {
			c, ok := vars[VarClient].(bank.Client)
			return ok && c.Balance().LessThanOrEqual(bound)
		},
		Outputs: process.Variables{VarTransportToHome: mode},
	}
}
