package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hexhold/hexhold/internal/client/game"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

func newHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Host a new room and enter the room console",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := &consolePrinter{}
			c, err := connectSignedIn(cfg, printer)
			if err != nil {
				return err
			}
			defer c.Close()

			code, err := c.Game.Host(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Hosting room %s; share the code to invite an opponent\n", code)

			return runConsole(c)
		},
	}
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room by code and enter the room console",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := &consolePrinter{}
			c, err := connectSignedIn(cfg, printer)
			if err != nil {
				return err
			}
			defer c.Close()

			code, err := c.Game.Join(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Joined room %s\n", code)

			return runConsole(c)
		},
	}
}

func newSayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <message>",
		Short: "Post a message to the menu chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectSignedIn(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Game.SendMessage(context.Background(), strings.Join(args, " "))
		},
	}
}

// runConsole reads stdin lines: plain text is chat, /commands drive
// the match. Returns when the user leaves or stdin closes.
func runConsole(c *Client) error {
	fmt.Println("Commands: /start /ready /place <hex> <gun|miner> /leave  (anything else is chat)")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if err := c.Game.SendMessage(context.Background(), line); err != nil {
				fmt.Printf("! %v\n", err)
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/start":
			if err := c.Game.Start(context.Background()); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case "/ready":
			if err := c.Game.Ready(context.Background()); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case "/place":
			if err := placeFromArgs(c, fields[1:]); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case "/leave", "/quit":
			return c.Game.Leave(context.Background())
		default:
			fmt.Printf("! unknown command %s\n", fields[0])
		}
	}
	return scanner.Err()
}

func placeFromArgs(c *Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: /place <hex> <gun|miner>")
	}

	hex, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("hex must be a number: %w", err)
	}

	var towerType model.TowerType
	switch args[1] {
	case "gun":
		towerType = model.TowerGun
	case "miner":
		towerType = model.TowerMiner
	default:
		return fmt.Errorf("tower type must be gun or miner")
	}

	return c.Game.PlaceTower(context.Background(), hex, towerType, 0)
}

// consolePrinter renders game notifications as console lines
type consolePrinter struct{}

var _ game.Notifier = (*consolePrinter)(nil)

func (p *consolePrinter) ChatReceived(msg protocol.MessageData) {
	fmt.Printf("[%s] %s: %s\n", msg.RoomID, msg.Username, msg.Message)
}

func (p *consolePrinter) RosterChanged(roomID model.RoomID, users []protocol.UserInfo) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	fmt.Printf("* room %s: %s\n", roomID, strings.Join(names, ", "))
}

func (p *consolePrinter) MatchStarting(roomID model.RoomID) {
	fmt.Printf("* match starting in %s, type /ready when set\n", roomID)
}

func (p *consolePrinter) MatchBegan(roomID model.RoomID, friendlyBase, enemyBase int) {
	fmt.Printf("* match begun: your base is hex %d, enemy base is hex %d\n", friendlyBase, enemyBase)
}

func (p *consolePrinter) TowersChanged(_ model.RoomID, towers []model.Tower) {
	fmt.Printf("* board now has %d towers\n", len(towers))
}

func (p *consolePrinter) EconomyChanged(eco model.Economy) {
	fmt.Printf("* credits: %d, life: %d\n", eco.Money, eco.Life)
}
