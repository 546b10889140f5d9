package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tormodh/doipuds/internal/session"
)

func main() {
	var (
		host             = flag.String("host", "127.0.0.1", "DoIP gateway host")
		port             = flag.Int("port", 13400, "DoIP gateway port")
		serverAddrHex    = flag.String("server-addr", "1FFF", "ECU logical address, hex")
		clientAddrHex    = flag.String("client-addr", "0E80", "tester logical address, hex")
		timeout          = flag.Duration("timeout", 5*time.Second, "connect/request timeout")
		serviceIDHex     = flag.String("service", "0x10", "UDS service ID, hex")
		operandHex       = flag.String("operand", "", "UDS request operand, whitespace-tolerant hex")
		securityConstant = flag.Uint("security-constant", 0x1234, "seed/key constant for SecurityAccess key submission")
		quiet            = flag.Bool("quiet", false, "suppress output (exit status indicates success)")
	)
	flag.Parse()

	if err := run(*host, *port, *serverAddrHex, *clientAddrHex, *timeout, *serviceIDHex, *operandHex, uint32(*securityConstant), *quiet); err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "udsquery error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(host string, port int, serverAddrHex, clientAddrHex string, timeout time.Duration, serviceIDHex, operandHex string, securityConstant uint32, quiet bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	constants := map[uint8]uint32{2: securityConstant, 4: securityConstant, 6: securityConstant, 8: securityConstant}
	manager := session.New(constants, logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	connectEnv := manager.Connect(ctx, session.ConnectionConfig{
		IPAddress:        host,
		Port:             port,
		ServerAddressHex: serverAddrHex,
		ClientAddressHex: clientAddrHex,
		TimeoutMs:        int(timeout.Milliseconds()),
	})
	if !connectEnv.Success {
		return fmt.Errorf("connect: %s", connectEnv.Message)
	}
	defer manager.Disconnect()

	cmdEnv := manager.SendCommand(ctx, serviceIDHex, operandHex)
	if !quiet {
		fmt.Printf("success=%v message=%q", cmdEnv.Success, cmdEnv.Message)
		if cmdEnv.Data != nil {
			fmt.Printf(" data=%s", *cmdEnv.Data)
		}
		fmt.Println()
	}
	if !cmdEnv.Success {
		return fmt.Errorf("command failed: %s", cmdEnv.Message)
	}
	return nil
}
