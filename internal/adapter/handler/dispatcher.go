package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/core/service"
	"github.com/jytian/gasops/internal/port"
)

// Action is the closed set of commands the dispatcher accepts.
type Action string

const (
	ActionCreateOrder    Action = "create_order"
	ActionCreateCustomer Action = "create_customer"
	ActionCheckInventory Action = "check_inventory"
	ActionCheckRevenue   Action = "check_revenue"
	ActionCheckOrder     Action = "check_order"
	ActionAddCost        Action = "add_cost"
	ActionAddCheck       Action = "add_check"
	ActionGetStatistics  Action = "get_statistics"
)

// Command is the request envelope. Data is decoded per action; RequestID,
// when present, is claimed once so replays are rejected.
type Command struct {
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Result is the response envelope. Data carries machine-readable ids for
// the caller to chain on.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Dispatcher routes commands to services. It decodes payloads and formats
// results; all business rules live in the services.
type Dispatcher struct {
	orders    *service.OrderService
	customers *service.CustomerService
	inventory *service.InventoryService
	finance   *service.FinanceService
	reports   *service.ReportService
	cache     port.Cache
	log       *logrus.Entry
}

func NewDispatcher(
	orders *service.OrderService,
	customers *service.CustomerService,
	inventory *service.InventoryService,
	finance *service.FinanceService,
	reports *service.ReportService,
	cache port.Cache,
	log *logrus.Entry,
) *Dispatcher {
	return &Dispatcher{
		orders:    orders,
		customers: customers,
		inventory: inventory,
		finance:   finance,
		reports:   reports,
		cache:     cache,
		log:       log,
	}
}

// Dispatch executes one command and always returns a filled Result; the
// error is returned alongside so transports can map it to a status code.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	if cmd.RequestID != "" {
		ok, err := d.cache.SetIdempotency(ctx, cmd.RequestID)
		if err != nil {
			// Idempotency is advisory: an unreachable cache must not block
			// command processing.
			d.log.WithError(err).Warn("idempotency check unavailable")
		} else if !ok {
			err := domain.NewConflict("duplicate request")
			return Result{Success: false, Message: "duplicate request"}, err
		}
	}

	result, err := d.route(ctx, cmd)
	if err != nil {
		d.log.WithError(err).WithField("action", cmd.Action).Info("command failed")

		message := err.Error()
		if !domain.IsDomainError(err) {
			message = "internal error"
		}
		return Result{Success: false, Message: message}, err
	}
	return result, nil
}

func (d *Dispatcher) route(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Action {
	case ActionCreateOrder:
		return d.createOrder(ctx, cmd.Data)
	case ActionCreateCustomer:
		return d.createCustomer(ctx, cmd.Data)
	case ActionCheckInventory:
		return d.checkInventory(ctx)
	case ActionCheckRevenue:
		return d.checkRevenue(ctx, cmd.Data)
	case ActionCheckOrder:
		return d.checkOrder(ctx, cmd.Data)
	case ActionAddCost:
		return d.addCost(ctx, cmd.Data)
	case ActionAddCheck:
		return d.addCheck(ctx, cmd.Data)
	case ActionGetStatistics:
		return d.getStatistics(ctx)
	default:
		return Result{}, domain.NewValidation("action", fmt.Sprintf("unknown action %q", cmd.Action))
	}
}

// Payloads accept both the snake_case keys used internally and the
// camelCase keys the upstream collaborator emits; either spelling binds.
type createOrderPayload struct {
	CustomerID    string `json:"customer_id"`
	CustomerIDAlt string `json:"customerId"`
	CustomerName  string `json:"customer_name"`
	Customer      string `json:"customer"`
	Items         []struct {
		ProductID    string `json:"product_id"`
		ProductIDAlt string `json:"productId"`
		Capacity     string `json:"capacity"`
		Size         string `json:"size"`
		Quantity     int    `json:"quantity"`
	} `json:"items"`
	Note string `json:"note"`
}

func (d *Dispatcher) createOrder(ctx context.Context, data json.RawMessage) (Result, error) {
	var p createOrderPayload
	if err := decode(data, &p); err != nil {
		return Result{}, err
	}

	input := service.OrderCreateInput{
		CustomerID:   firstOf(p.CustomerID, p.CustomerIDAlt),
		CustomerName: firstOf(p.CustomerName, p.Customer),
		Note:         p.Note,
	}
	for _, item := range p.Items {
		quantity := item.Quantity
		if quantity == 0 {
			// An omitted quantity means one cylinder.
			quantity = 1
		}
		input.Items = append(input.Items, service.OrderItemInput{
			ProductID: firstOf(item.ProductID, item.ProductIDAlt),
			Capacity:  firstOf(item.Capacity, item.Size),
			Quantity:  quantity,
		})
	}

	order, err := d.orders.CreateOrder(ctx, input)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("order %s created, total %s", order.OrderNo, order.Total.StringFixed(2)),
		Data: map[string]any{
			"order_id":        order.ID,
			"order_no":        order.OrderNo,
			"delivery_number": order.DeliveryNumber,
			"total":           order.Total.StringFixed(2),
		},
	}, nil
}

type createCustomerPayload struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	PaymentType string `json:"payment_type"`
	PaymentAlt  string `json:"paymentType"`
	GroupID     string `json:"group_id"`
	GroupIDAlt  string `json:"groupId"`
}

func (d *Dispatcher) createCustomer(ctx context.Context, data json.RawMessage) (Result, error) {
	var p createCustomerPayload
	if err := decode(data, &p); err != nil {
		return Result{}, err
	}

	input := domain.CustomerCreate{
		Name:        p.Name,
		Phone:       p.Phone,
		Address:     p.Address,
		PaymentType: domain.PaymentType(firstOf(p.PaymentType, p.PaymentAlt)),
	}
	if groupID := firstOf(p.GroupID, p.GroupIDAlt); groupID != "" {
		input.GroupID = &groupID
	}

	customer, err := d.customers.CreateCustomer(ctx, input)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("customer %s registered", customer.Name),
		Data:    map[string]any{"customer_id": customer.ID},
	}, nil
}

func (d *Dispatcher) checkInventory(ctx context.Context) (Result, error) {
	levels, err := d.inventory.Levels(ctx)
	if err != nil {
		return Result{}, err
	}

	low := 0
	items := make([]map[string]any, 0, len(levels))
	for _, l := range levels {
		if l.LowStock() {
			low++
		}
		items = append(items, map[string]any{
			"product_id": l.ProductID,
			"name":       l.ProductName,
			"capacity":   l.Capacity,
			"quantity":   l.Quantity,
			"min_stock":  l.MinStock,
			"low_stock":  l.LowStock(),
		})
	}

	message := fmt.Sprintf("%d products in stock", len(levels))
	if low > 0 {
		message = fmt.Sprintf("%d products in stock, %d below minimum", len(levels), low)
	}

	return Result{
		Success: true,
		Message: message,
		Data:    map[string]any{"items": items},
	}, nil
}

type checkRevenuePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (d *Dispatcher) checkRevenue(ctx context.Context, data json.RawMessage) (Result, error) {
	var p checkRevenuePayload
	if err := decodeOptional(data, &p); err != nil {
		return Result{}, err
	}

	// Default window is today.
	now := time.Now()
	from := domain.DayStart(now)
	to := from.AddDate(0, 0, 1)
	if p.From != "" {
		parsed, err := time.ParseInLocation("2006-01-02", p.From, now.Location())
		if err != nil {
			return Result{}, domain.NewValidation("from", "expected YYYY-MM-DD")
		}
		from = parsed
	}
	if p.To != "" {
		parsed, err := time.ParseInLocation("2006-01-02", p.To, now.Location())
		if err != nil {
			return Result{}, domain.NewValidation("to", "expected YYYY-MM-DD")
		}
		to = parsed.AddDate(0, 0, 1)
	}

	report, err := d.reports.Revenue(ctx, from, to)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("%d orders, revenue %s", report.Orders, report.Revenue.StringFixed(2)),
		Data: map[string]any{
			"orders":  report.Orders,
			"revenue": report.Revenue.StringFixed(2),
		},
	}, nil
}

type checkOrderPayload struct {
	OrderID       string `json:"order_id"`
	OrderIDAlt    string `json:"orderId"`
	OrderNo       string `json:"order_no"`
	OrderNoAlt    string `json:"orderNo"`
	CustomerID    string `json:"customer_id"`
	CustomerIDAlt string `json:"customerId"`
	Status        string `json:"status"`
}

func (d *Dispatcher) checkOrder(ctx context.Context, data json.RawMessage) (Result, error) {
	var p checkOrderPayload
	if err := decodeOptional(data, &p); err != nil {
		return Result{}, err
	}

	if orderID := firstOf(p.OrderID, p.OrderIDAlt); orderID != "" {
		order, err := d.orders.GetOrder(ctx, orderID)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("order %s is %s", order.OrderNo, order.Status),
			Data: map[string]any{
				"order_id": order.ID,
				"order_no": order.OrderNo,
				"status":   string(order.Status),
				"total":    order.Total.StringFixed(2),
			},
		}, nil
	}

	orders, err := d.orders.FindOrders(ctx, port.OrderFilter{
		CustomerID: firstOf(p.CustomerID, p.CustomerIDAlt),
		OrderNo:    firstOf(p.OrderNo, p.OrderNoAlt),
		Status:     domain.OrderStatus(p.Status),
	})
	if err != nil {
		return Result{}, err
	}

	summaries := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, map[string]any{
			"order_id": o.ID,
			"order_no": o.OrderNo,
			"status":   string(o.Status),
			"total":    o.Total.StringFixed(2),
		})
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("%d orders found", len(orders)),
		Data:    map[string]any{"orders": summaries},
	}, nil
}

type addCostPayload struct {
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

func (d *Dispatcher) addCost(ctx context.Context, data json.RawMessage) (Result, error) {
	var p addCostPayload
	if err := decode(data, &p); err != nil {
		return Result{}, err
	}

	input := domain.CostRecordCreate{
		Type:        p.Type,
		Category:    p.Category,
		Amount:      decimal.NewFromFloat(p.Amount),
		Description: p.Description,
	}
	if p.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", p.Date, time.Local)
		if err != nil {
			return Result{}, domain.NewValidation("date", "expected YYYY-MM-DD")
		}
		input.Date = parsed
	}

	record, err := d.finance.AddCost(ctx, input)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("cost %s recorded: %s", record.Amount.StringFixed(2), record.Type),
		Data:    map[string]any{"cost_id": record.ID},
	}, nil
}

type addCheckPayload struct {
	CheckNo       string  `json:"check_no"`
	CheckNoAlt    string  `json:"checkNo"`
	BankName      string  `json:"bank_name"`
	BankNameAlt   string  `json:"bankName"`
	Amount        float64 `json:"amount"`
	CheckDate     string  `json:"check_date"`
	CheckDateAlt  string  `json:"checkDate"`
	CustomerID    string  `json:"customer_id"`
	CustomerIDAlt string  `json:"customerId"`
}

func (d *Dispatcher) addCheck(ctx context.Context, data json.RawMessage) (Result, error) {
	var p addCheckPayload
	if err := decode(data, &p); err != nil {
		return Result{}, err
	}

	input := domain.CheckCreate{
		CheckNo:  firstOf(p.CheckNo, p.CheckNoAlt),
		BankName: firstOf(p.BankName, p.BankNameAlt),
		Amount:   decimal.NewFromFloat(p.Amount),
	}
	if checkDate := firstOf(p.CheckDate, p.CheckDateAlt); checkDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", checkDate, time.Local)
		if err != nil {
			return Result{}, domain.NewValidation("check_date", "expected YYYY-MM-DD")
		}
		input.CheckDate = parsed
	}
	if customerID := firstOf(p.CustomerID, p.CustomerIDAlt); customerID != "" {
		input.CustomerID = &customerID
	}

	check, err := d.finance.AddCheck(ctx, input)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("check %s for %s recorded", check.CheckNo, check.Amount.StringFixed(2)),
		Data:    map[string]any{"check_id": check.ID},
	}, nil
}

func (d *Dispatcher) getStatistics(ctx context.Context) (Result, error) {
	stats, err := d.reports.Statistics(ctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("this month: %d orders, revenue %s, costs %s",
			stats.MonthOrders, stats.MonthRevenue.StringFixed(2), stats.MonthCosts.StringFixed(2)),
		Data: map[string]any{
			"month_revenue":   stats.MonthRevenue.StringFixed(2),
			"month_orders":    stats.MonthOrders,
			"month_costs":     stats.MonthCosts.StringFixed(2),
			"pending_orders":  stats.PendingOrders,
			"low_stock_items": stats.LowStockItems,
		},
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.NewValidation("data", "payload required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.NewValidation("data", "malformed payload")
	}
	return nil
}

func decodeOptional(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return decode(data, v)
}
