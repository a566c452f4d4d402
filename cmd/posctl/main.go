// Command posctl is a terminal client for waiters and admins. It builds
// carts locally, checking stock against the server before every change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/client"
	"github.com/tableside/api/internal/enum"
)

const usage = `usage: posctl [flags] <command> [args]

commands:
  menu [category]                      list products and stock
  tables                               list open tables
  open <name> [room-id]                open a table
  order <table-id> <product-id>:<qty>[:comment] ...
                                       submit an order
  finish <table-id> <order-id>         mark an order finished
  cancel <table-id> <order-id>         cancel an order and return stock
  bill <table-id>                      preview the bill
  close <table-id> <method> [room]     close a table (method: cash|card|pix|room_account)
  status                               show whether orders are accepted
  gate on|off [reason]                 open or close ordering (admin)
`

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	server := flag.String("server", envOr("POS_SERVER", "http://localhost:8081"), "API base URL")
	user := flag.String("user", os.Getenv("POS_USER"), "username")
	pass := flag.String("password", os.Getenv("POS_PASSWORD"), "password")
	tax := flag.Bool("service-tax", true, "apply the service tax on bill and close")
	invoice := flag.Bool("invoice", false, "queue an invoice print on close")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(*server, client.WithToken(os.Getenv("POS_TOKEN")))
	if c.Token() == "" {
		if _, err := c.Login(ctx, *user, *pass); err != nil {
			fail(err)
		}
	}

	opts := closeOptions{tax: *tax, invoice: *invoice}
	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:], opts); err != nil {
		fail(err)
	}
}

type closeOptions struct {
	tax     bool
	invoice bool
}

func run(ctx context.Context, c *client.Client, cmd string, args []string, opts closeOptions) error {
	switch cmd {
	case "menu":
		return menu(ctx, c, optional(args, 0))
	case "tables":
		return tables(ctx, c)
	case "open":
		if len(args) < 1 {
			return errUsage
		}
		var roomID *uuid.UUID
		if len(args) > 1 {
			id, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("room id: %w", err)
			}
			roomID = &id
		}
		t, err := c.OpenTable(ctx, args[0], roomID)
		if err != nil {
			return err
		}
		fmt.Printf("opened table %s (%s)\n", t.Name, t.ID)
		return nil
	case "order":
		if len(args) < 2 {
			return errUsage
		}
		return order(ctx, c, args[0], args[1:])
	case "finish", "cancel":
		if len(args) != 2 {
			return errUsage
		}
		tableID, orderID, err := parseIDs(args[0], args[1])
		if err != nil {
			return err
		}
		fn := c.FinishOrder
		if cmd == "cancel" {
			fn = c.CancelOrder
		}
		o, err := fn(ctx, tableID, orderID)
		if err != nil {
			return err
		}
		fmt.Printf("order %s is %s\n", o.ID, o.Status)
		return nil
	case "bill", "close":
		if len(args) < 1 {
			return errUsage
		}
		return closeOut(ctx, c, cmd == "close", args, opts)
	case "status":
		st, err := c.SystemStatus(ctx)
		if err != nil {
			return err
		}
		if st.OrdersEnabled {
			fmt.Println("orders: enabled")
		} else {
			fmt.Printf("orders: disabled (%s)\n", st.Reason)
		}
		return nil
	case "gate":
		if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
			return errUsage
		}
		st, err := c.SetSystemStatus(ctx, args[0] == "on", strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("orders enabled: %t (version %d)\n", st.OrdersEnabled, st.Version)
		return nil
	}
	return errUsage
}

var errUsage = errors.New("invalid command, run posctl -h")

func menu(ctx context.Context, c *client.Client, category string) error {
	products, err := c.ListProducts(ctx, category)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		stock := "-"
		if p.StockQuantity != nil {
			stock = strconv.Itoa(int(*p.StockQuantity))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Category, p.Name, client.Money(p.Price), stock)
	}
	return w.Flush()
}

func tables(ctx context.Context, c *client.Client) error {
	open := false
	list, err := c.ListTables(ctx, &open)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORDERS\tPENDING")
	for _, t := range list {
		pending := 0
		for _, o := range t.Orders {
			if o.Status == enum.OrderStatusPending {
				pending++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", t.ID, t.Name, len(t.Orders), pending)
	}
	return w.Flush()
}

// order builds a cart line by line so stock problems surface before submit.
func order(ctx context.Context, c *client.Client, table string, lineArgs []string) error {
	tableID, err := uuid.Parse(table)
	if err != nil {
		return fmt.Errorf("table id: %w", err)
	}

	b := cart.New(c, c, c)
	for _, arg := range lineArgs {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) < 2 {
			return fmt.Errorf("line %q: want product-id:qty[:comment]", arg)
		}
		productID, err := uuid.Parse(parts[0])
		if err != nil {
			return fmt.Errorf("line %q: %w", arg, err)
		}
		qty, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return fmt.Errorf("line %q: quantity: %w", arg, err)
		}
		if err := b.AddLine(ctx, productID, int32(qty), optional(parts, 2)); err != nil {
			return fmt.Errorf("line %q: %w", arg, err)
		}
	}

	o, err := b.Submit(ctx, tableID)
	if err != nil {
		return err
	}
	fmt.Printf("order %s submitted: %d items, total %s\n", o.ID, o.TotalItems(), client.Money(o.TotalAmount()))
	return nil
}

func closeOut(ctx context.Context, c *client.Client, commit bool, args []string, opts closeOptions) error {
	tableID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("table id: %w", err)
	}
	p := client.CloseParams{
		ServiceTax:      opts.tax,
		PaymentOption:   enum.PaymentOptionImmediate,
		PaymentMethod:   enum.PaymentMethod(optional(args, 1)),
		GenerateInvoice: opts.invoice,
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = enum.PaymentMethodCash
	}
	if optional(args, 2) == "room" {
		p.PaymentOption = enum.PaymentOptionRoom
	}

	if !commit {
		bill, err := c.PreviewBill(ctx, tableID, p)
		if err != nil {
			return err
		}
		fmt.Printf("base %s  tax %s  total %s\n", client.Money(bill.BaseTotal), client.Money(bill.TaxAmount), client.Money(bill.GrandTotal))
		return nil
	}

	t, err := c.CloseTable(ctx, tableID, p)
	if err != nil {
		return err
	}
	if t.Bill == nil {
		fmt.Printf("table %s closed\n", t.Name)
		return nil
	}
	fmt.Printf("table %s closed: %s paid by %s\n", t.Name, client.Money(t.Bill.GrandTotal), t.Bill.PaymentMethod)
	return nil
}

func parseIDs(a, b string) (uuid.UUID, uuid.UUID, error) {
	x, err := uuid.Parse(a)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("table id: %w", err)
	}
	y, err := uuid.Parse(b)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("order id: %w", err)
	}
	return x, y, nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(err error) {
	kind := apierror.KindOf(err)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	log.Error().Str("kind", string(kind)).Msg(err.Error())
	os.Exit(1)
}
