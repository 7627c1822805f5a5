package fixgateway

import (
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// application implements the quickfix.Application interface and routes
// inbound execution reports back to the owning gateway.
type application struct {
	*quickfix.MessageRouter
	gw *Gateway
}

func newApplication(gw *Gateway) *application {
	app := &application{
		MessageRouter: quickfix.NewMessageRouter(),
		gw:            gw,
	}
	app.AddRoute(executionreport.Route(app.onExecutionReport))
	return app
}

// OnCreate implemented as part of Application interface
func (a *application) OnCreate(sessionID quickfix.SessionID) {}

// OnLogon implemented as part of Application interface
func (a *application) OnLogon(sessionID quickfix.SessionID) {
	a.gw.onLogon(sessionID)
}

// OnLogout implemented as part of Application interface
func (a *application) OnLogout(sessionID quickfix.SessionID) {
	a.gw.onLogout(sessionID)
}

// ToAdmin implemented as part of Application interface
func (a *application) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}

// ToApp implemented as part of Application interface
func (a *application) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

// FromAdmin implemented as part of Application interface
func (a *application) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// FromApp implemented as part of Application interface, uses Router on incoming application messages
func (a *application) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return a.Route(msg, sessionID)
}

func (a *application) onExecutionReport(msg executionreport.ExecutionReport, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, _ := msg.GetClOrdID()
	ordStatus, _ := msg.GetOrdStatus()
	cumQty, _ := msg.GetCumQty()
	avgPx, _ := msg.GetAvgPx()
	text, _ := msg.GetText()

	transactTime := time.Now()
	if tt, err := msg.GetTransactTime(); err == nil {
		transactTime = tt
	}

	a.gw.onExecutionReport(&execReport{
		ClOrdID:      clOrdID,
		OrdStatus:    ordStatus,
		CumQty:       cumQty,
		AvgPx:        avgPx,
		Text:         text,
		TransactTime: transactTime,
	})
	return nil
}

// execReport is the subset of an ExecutionReport the gateway consumes.
type execReport struct {
	ClOrdID      string
	OrdStatus    enum.OrdStatus
	CumQty       decimal.Decimal
	AvgPx        decimal.Decimal
	Text         string
	TransactTime time.Time
}

// isAck reports whether a status resolves an in-flight request.
func isAck(status enum.OrdStatus) bool {
	switch status {
	case enum.OrdStatus_NEW, enum.OrdStatus_REJECTED, enum.OrdStatus_REPLACED,
		enum.OrdStatus_CANCELED, enum.OrdStatus_FILLED, enum.OrdStatus_PARTIALLY_FILLED:
		return true
	}
	return false
}
