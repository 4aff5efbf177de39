package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/observability"
)

const defaultConfigPath = "cmd/client-tm/hosts.toml"

var (
	// ErrNavigateBack signals caller-intent to return to the previous menu.
	ErrNavigateBack = errors.New("navigate back")
	// ErrNavigateExit signals caller-intent to exit the interactive client.
	ErrNavigateExit = errors.New("navigate exit")
)

// hostConfigFile persists coordinator targets configured for the client.
type hostConfigFile struct {
	ClearScreenAfterCommand bool               `toml:"clear_screen_after_command"`
	Targets                 []hostTargetConfig `toml:"targets"`
}

// hostTargetConfig binds a display name to one coordinator API endpoint.
type hostTargetConfig struct {
	Name  string `toml:"name"`
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

// HealthStatus mirrors the coordinator /health body.
type HealthStatus struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Node    string `json:"node"`
	Version string `json:"version"`
}

// ReadyStatus mirrors the coordinator /ready body. BridgeConnected is nil
// when the host runs without a viewer bridge.
type ReadyStatus struct {
	Ready           bool          `json:"ready"`
	Level           command.Level `json:"level"`
	TargetLoaded    bool          `json:"target_loaded"`
	BridgeConnected *bool         `json:"bridge_connected,omitempty"`
	Node            string        `json:"node"`
	Uptime          string        `json:"uptime"`
}

// BridgeStatus reports the coordinator's viewer link counters.
type BridgeStatus struct {
	Connected   bool `json:"connected"`
	Outstanding int  `json:"outstanding"`
}

// QueueStatus mirrors the /api/v1/queue body.
type QueueStatus struct {
	Queue  command.QueueSnapshot `json:"queue"`
	Bridge *BridgeStatus         `json:"bridge,omitempty"`
}

// EnqueueRequest is the enqueue payload accepted by the coordinator API.
type EnqueueRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RequiredLevel string          `json:"required_level,omitempty"`
}

// EnqueueAck is the accepted envelope returned for one queued command.
type EnqueueAck struct {
	ID            string         `json:"id"`
	Status        command.Status `json:"status"`
	RequiredLevel string         `json:"required_level"`
}

// ExecuteRequest is the execute-now payload accepted by the coordinator API.
type ExecuteRequest struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type executeResponse struct {
	Outcome command.Outcome `json:"outcome"`
}

// CommandStatusResult is the lookup body for one command id.
type CommandStatusResult struct {
	ID      string           `json:"id"`
	Status  command.Status   `json:"status"`
	Outcome *command.Outcome `json:"outcome,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// HostAdmin defines the client control boundary for one coordinator target.
type HostAdmin interface {
	Address() string
	Health() (HealthStatus, error)
	Ready() (ReadyStatus, error)
	Queue() (QueueStatus, error)
	Enqueue(req EnqueueRequest) (EnqueueAck, error)
	Execute(req ExecuteRequest) (command.Outcome, error)
	CommandStatus(commandID string) (CommandStatusResult, error)
	ClearQueue() error
	Close() error
}

// RemoteHostAdmin is an HTTP client for one coordinator API endpoint.
type RemoteHostAdmin struct {
	addr   string
	token  string
	client *http.Client
}

// HostTarget maps a friendly name to a concrete coordinator admin client.
type HostTarget struct {
	Name  string
	Admin HostAdmin
}

// CommandArgSpec defines one guided argument prompt for a catalog command
// template. Kind selects the JSON encoding of the collected value.
type CommandArgSpec struct {
	Key          string
	Prompt       string
	Kind         string // "string", "int", or "float"
	Required     bool
	DefaultValue string
}

// CommandTemplate defines one predeclared viewer command shape used by the
// enqueue and execute wizards.
type CommandTemplate struct {
	ID          string
	Label       string
	Description string
	Operation   string
	Args        []CommandArgSpec
	DefaultTier command.Level
}

// App hosts interactive state and persisted target references.
type App struct {
	reader       *bufio.Reader
	cfgPath      string
	cfg          hostConfigFile
	targets      []HostTarget
	activeTarget int
	clearScreen  bool
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", defaultConfigPath, "path to the persisted host target list")
	flag.Parse()

	observability.InitLogger("client-tm")
	app := NewApp(cfgPath)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "client-tm: %v\n", err)
		os.Exit(1)
	}
}

func NewApp(cfgPath string) *App {
	return &App{
		reader:       bufio.NewReader(os.Stdin),
		cfgPath:      cfgPath,
		targets:      make([]HostTarget, 0),
		activeTarget: -1,
		clearScreen:  false,
	}
}

// Run executes the main interactive menu loop.
func (a *App) Run() error {
	if err := a.loadOrInitConfig(); err != nil {
		return err
	}
	log.Info().
		Int("targets", len(a.cfg.Targets)).
		Str("config", a.cfgPath).
		Msg("client-tm loaded")

	for {
		a.printMainMenu()
		choice, err := a.promptInt("Choose", 1, 8, false, true)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) {
				return a.exitClient()
			}
			return err
		}
		a.clearIfEnabled()
		switch choice {
		case 1:
			a.listTargets()
		case 2:
			if err := a.addHostTarget(); err != nil {
				log.Error().Err(err).Msg("add target failed")
			}
		case 3:
			if err := a.selectActiveTarget(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				if errors.Is(err, ErrNavigateExit) {
					return a.exitClient()
				}
				log.Error().Err(err).Msg("select target failed")
			}
		case 4:
			a.showActiveHostSummary()
		case 5:
			if err := a.runHostCommandConsole(); err != nil {
				if errors.Is(err, ErrNavigateExit) {
					return a.exitClient()
				}
				log.Error().Err(err).Msg("host command console error")
			}
		case 6:
			if err := a.removeHostTarget(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				if errors.Is(err, ErrNavigateExit) {
					return a.exitClient()
				}
				log.Error().Err(err).Msg("remove target failed")
			}
		case 7:
			if err := a.runConfigMenu(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				if errors.Is(err, ErrNavigateExit) {
					return a.exitClient()
				}
				log.Error().Err(err).Msg("config menu failed")
			}
		case 8:
			return a.exitClient()
		}
	}
}

// exitClient saves current config and closes open admin clients.
func (a *App) exitClient() error {
	if err := a.saveConfig(); err != nil {
		log.Warn().Err(err).Msg("save on exit failed")
	}
	a.closeTargets()
	log.Info().Msg("client-tm exiting")
	return nil
}

// loadOrInitConfig loads the persisted file and initializes runtime targets.
func (a *App) loadOrInitConfig() error {
	if err := ensureFile(a.cfgPath); err != nil {
		return err
	}
	if _, err := toml.DecodeFile(a.cfgPath, &a.cfg); err != nil {
		return fmt.Errorf("load host config: %w", err)
	}
	a.clearScreen = a.cfg.ClearScreenAfterCommand
	needsSave := false

	if len(a.cfg.Targets) == 0 {
		a.cfg.Targets = append(a.cfg.Targets, defaultHostTarget())
		needsSave = true
	}
	for _, cfg := range a.cfg.Targets {
		name := strings.TrimSpace(cfg.Name)
		addr := strings.TrimSpace(cfg.Addr)
		if name == "" || addr == "" {
			continue
		}
		a.targets = append(a.targets, HostTarget{
			Name:  name,
			Admin: NewRemoteHostAdmin(addr, cfg.Token),
		})
	}
	if len(a.targets) > 0 {
		a.activeTarget = 0
	}
	if needsSave {
		return a.saveConfig()
	}
	return nil
}

func defaultHostTarget() hostTargetConfig {
	return hostTargetConfig{
		Name: "local-host",
		Addr: "127.0.0.1:7400",
	}
}

// saveConfig writes the current target list to disk. The file may carry
// bearer tokens, so it stays owner-only.
func (a *App) saveConfig() error {
	buf := strings.Builder{}
	if err := toml.NewEncoder(&buf).Encode(a.cfg); err != nil {
		return err
	}
	return os.WriteFile(a.cfgPath, []byte(buf.String()), 0o600)
}

func (a *App) printMainMenu() {
	fmt.Println()
	fmt.Println("Client TM")
	fmt.Printf("  host config: %s (targets=%d)\n", a.cfgPath, len(a.cfg.Targets))
	fmt.Printf("  clear screen after command: %v\n", a.clearScreen)
	fmt.Println("  1) List host targets")
	fmt.Println("  2) Add host target (persist)")
	fmt.Println("  3) Select active host target")
	fmt.Println("  4) Show active host summary")
	fmt.Println("  5) Host command console")
	fmt.Println("  6) Remove host target")
	fmt.Println("  7) Config menu")
	fmt.Println("  8) Exit")
}

// runConfigMenu centralizes client runtime toggles and persistence actions.
func (a *App) runConfigMenu() error {
	for {
		fmt.Println()
		fmt.Println("Config Menu")
		fmt.Printf("  clear_screen_after_command: %v\n", a.clearScreen)
		fmt.Printf("  host config: %s\n", a.cfgPath)
		fmt.Println("  1) Toggle clear-screen")
		fmt.Println("  2) Save config")
		fmt.Println("  3) Reset config to defaults")
		fmt.Println("  4) Back")
		choice, err := a.promptInt("Choose", 1, 4, true, true)
		if err != nil {
			return err
		}
		a.clearIfEnabled()
		switch choice {
		case 1:
			a.clearScreen = !a.clearScreen
			a.cfg.ClearScreenAfterCommand = a.clearScreen
			log.Info().Bool("clear_screen_after_command", a.clearScreen).Msg("toggled")
		case 2:
			if err := a.saveConfig(); err != nil {
				log.Error().Err(err).Msg("save failed")
			} else {
				log.Info().Msg("config saved")
			}
		case 3:
			if err := a.resetToDefaultConfig(); err != nil {
				log.Error().Err(err).Msg("reset config failed")
			}
		case 4:
			return nil
		}
	}
}

func (a *App) listTargets() {
	fmt.Println()
	fmt.Println("Host Targets")
	if len(a.targets) == 0 {
		fmt.Println("  (none)")
		return
	}
	for i := range a.targets {
		target := a.targets[i]
		marker := " "
		if a.activeTarget == i {
			marker = "*"
		}
		health, err := target.Admin.Health()
		if err != nil {
			fmt.Printf("  %s [%d] %s addr=%s (health err: %v)\n",
				marker, i+1, target.Name, target.Admin.Address(), err)
			continue
		}
		fmt.Printf("  %s [%d] %s addr=%s node=%s status=%s uptime=%s\n",
			marker, i+1, target.Name, target.Admin.Address(), health.Node, health.Status, health.Uptime)
	}
}

func (a *App) addHostTarget() error {
	nameRaw, err := a.promptLine("Target name")
	if err != nil {
		return err
	}
	addrRaw, err := a.promptLine("Coordinator addr (host:port or port)")
	if err != nil {
		return err
	}
	tokenRaw, err := a.promptLine("API token (blank = none)")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(nameRaw)
	if name == "" {
		return errors.New("name is required")
	}
	addr, err := normalizeTargetAddr(a.defaultTargetHost(), addrRaw)
	if err != nil {
		return err
	}
	if a.targetExists(name, addr) {
		return fmt.Errorf("target exists name=%q addr=%q", name, addr)
	}

	token := strings.TrimSpace(tokenRaw)
	admin := NewRemoteHostAdmin(addr, token)
	if _, probeErr := admin.Health(); probeErr != nil {
		log.Warn().Err(probeErr).Str("addr", addr).Msg("host unreachable; adding anyway")
	}

	a.cfg.Targets = append(a.cfg.Targets, hostTargetConfig{Name: name, Addr: addr, Token: token})
	a.targets = append(a.targets, HostTarget{Name: name, Admin: admin})
	if a.activeTarget < 0 {
		a.activeTarget = 0
	}
	log.Info().Str("name", name).Str("addr", addr).Msg("added host target")
	return a.saveConfig()
}

// removeHostTarget deletes one target from runtime and persisted config.
func (a *App) removeHostTarget() error {
	if len(a.targets) == 0 {
		return errors.New("no targets to remove")
	}
	a.listTargets()
	choice, err := a.promptInt("Remove target", 1, len(a.targets), true, true)
	if err != nil {
		return err
	}
	idx := choice - 1
	name := a.targets[idx].Name
	admin := a.targets[idx].Admin
	a.targets = append(a.targets[:idx], a.targets[idx+1:]...)
	a.cfg.Targets = append(a.cfg.Targets[:idx], a.cfg.Targets[idx+1:]...)
	_ = admin.Close()
	if len(a.targets) == 0 {
		a.activeTarget = -1
	} else if a.activeTarget >= len(a.targets) {
		a.activeTarget = len(a.targets) - 1
	}
	log.Info().Str("name", name).Msg("removed host target")
	return a.saveConfig()
}

// resetToDefaultConfig removes stale targets and restores the baseline file.
func (a *App) resetToDefaultConfig() error {
	confirm, err := a.promptLine("Type RESET to confirm")
	if err != nil {
		return err
	}
	if strings.TrimSpace(confirm) != "RESET" {
		return errors.New("reset cancelled")
	}
	a.closeTargets()
	a.cfg = hostConfigFile{
		ClearScreenAfterCommand: false,
		Targets:                 []hostTargetConfig{defaultHostTarget()},
	}
	def := defaultHostTarget()
	a.targets = []HostTarget{{Name: def.Name, Admin: NewRemoteHostAdmin(def.Addr, "")}}
	a.activeTarget = 0
	a.clearScreen = false
	return a.saveConfig()
}

func (a *App) selectActiveTarget() error {
	if len(a.targets) == 0 {
		return errors.New("no targets available")
	}
	a.listTargets()
	choice, err := a.promptInt("Select target", 1, len(a.targets), true, true)
	if err != nil {
		return err
	}
	a.activeTarget = choice - 1
	log.Info().Str("name", a.targets[a.activeTarget].Name).Msg("active target set")
	return nil
}

func (a *App) showActiveHostSummary() {
	target, ok := a.active()
	if !ok {
		fmt.Println("No active target. Add/select one first.")
		return
	}
	a.showHostSummary(target)
}

func (a *App) showHostSummary(target HostTarget) {
	health, err := target.Admin.Health()
	if err != nil {
		fmt.Printf("Health error: %v\n", err)
		return
	}
	ready, err := target.Admin.Ready()
	if err != nil {
		fmt.Printf("Ready error: %v\n", err)
		return
	}
	queue, err := target.Admin.Queue()
	if err != nil {
		fmt.Printf("Queue error: %v\n", err)
		return
	}

	fmt.Println()
	fmt.Printf("Active Host: %s\n", target.Name)
	fmt.Printf("  addr:          %s\n", target.Admin.Address())
	fmt.Printf("  node:          %s\n", health.Node)
	fmt.Printf("  status:        %s\n", health.Status)
	fmt.Printf("  uptime:        %s\n", health.Uptime)
	fmt.Printf("  ready:         %v\n", ready.Ready)
	fmt.Printf("  level:         %s\n", ready.Level)
	fmt.Printf("  target_loaded: %v\n", ready.TargetLoaded)
	if ready.BridgeConnected != nil {
		fmt.Printf("  bridge:        connected=%v\n", *ready.BridgeConnected)
	} else {
		fmt.Println("  bridge:        (not attached)")
	}
	printQueueStatus(queue)
}

// runHostCommandConsole drives one admin session for the selected host.
func (a *App) runHostCommandConsole() error {
	target, ok := a.active()
	if !ok {
		return errors.New("no active target")
	}
	for {
		fmt.Println()
		fmt.Printf("Host Command Console (%s @ %s)\n", target.Name, target.Admin.Address())
		fmt.Println("  1) Show host summary")
		fmt.Println("  2) List viewer operations")
		fmt.Println("  3) Enqueue viewer command")
		fmt.Println("  4) Execute viewer command now")
		fmt.Println("  5) Enqueue custom operation")
		fmt.Println("  6) Lookup command by id")
		fmt.Println("  7) Show queue snapshot")
		fmt.Println("  8) Clear queue")
		fmt.Println("  9) Back")

		choice, err := a.promptInt("Choose", 1, 9, true, true)
		if err != nil {
			if errors.Is(err, ErrNavigateBack) {
				return nil
			}
			return err
		}
		a.clearIfEnabled()
		switch choice {
		case 1:
			a.showHostSummary(target)
		case 2:
			listViewerOperations()
		case 3:
			if err := a.enqueueViewerCommand(target); err != nil {
				log.Error().Err(err).Msg("enqueue command failed")
			}
		case 4:
			if err := a.executeViewerCommand(target); err != nil {
				log.Error().Err(err).Msg("execute command failed")
			}
		case 5:
			if err := a.enqueueCustomOperation(target); err != nil {
				log.Error().Err(err).Msg("enqueue custom operation failed")
			}
		case 6:
			if err := a.lookupCommand(target); err != nil {
				log.Error().Err(err).Msg("lookup command failed")
			}
		case 7:
			if err := a.showQueueSnapshot(target); err != nil {
				log.Error().Err(err).Msg("show queue failed")
			}
		case 8:
			if err := a.clearHostQueue(target); err != nil {
				log.Error().Err(err).Msg("clear queue failed")
			}
		case 9:
			return nil
		}
	}
}

func listViewerOperations() {
	fmt.Println()
	fmt.Println("Viewer Operations")
	for _, tpl := range commandTemplateCatalog() {
		fmt.Printf("  %s (default_level=%s)\n", tpl.Operation, tpl.DefaultTier)
		if strings.TrimSpace(tpl.Description) != "" {
			fmt.Printf("    - %s\n", tpl.Description)
		}
		for _, arg := range tpl.Args {
			required := "optional"
			if arg.Required {
				required = "required"
			}
			fmt.Printf("    - arg %s (%s, %s)\n", arg.Key, arg.Kind, required)
		}
	}
}

func (a *App) enqueueViewerCommand(target HostTarget) error {
	fmt.Println()
	fmt.Println("Viewer Command Wizard")
	ready, readyErr := target.Admin.Ready()
	if readyErr != nil {
		log.Warn().Err(readyErr).Msg("readiness probe failed; queue annotations unavailable")
	}
	template, err := a.promptCommandTemplateSelection("Select command", commandTemplateCatalog(), ready, readyErr == nil)
	if err != nil {
		return err
	}
	values, err := a.promptCommandArgs(template.Args)
	if err != nil {
		return err
	}
	payload, err := buildPayload(template.Args, values)
	if err != nil {
		return err
	}
	tier, err := a.promptTier(template.DefaultTier)
	if err != nil {
		return err
	}

	ack, err := target.Admin.Enqueue(EnqueueRequest{
		Name:          template.Operation,
		Payload:       payload,
		RequiredLevel: tier.String(),
	})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Enqueue Result")
	fmt.Printf("  command_id:     %s\n", ack.ID)
	fmt.Printf("  status:         %s\n", ack.Status)
	fmt.Printf("  required_level: %s\n", ack.RequiredLevel)
	return nil
}

func (a *App) executeViewerCommand(target HostTarget) error {
	fmt.Println()
	fmt.Println("Execute Now Wizard")
	ready, readyErr := target.Admin.Ready()
	if readyErr != nil {
		log.Warn().Err(readyErr).Msg("readiness probe failed; queue annotations unavailable")
	}
	template, err := a.promptCommandTemplateSelection("Select command", commandTemplateCatalog(), ready, readyErr == nil)
	if err != nil {
		return err
	}
	values, err := a.promptCommandArgs(template.Args)
	if err != nil {
		return err
	}
	payload, err := buildPayload(template.Args, values)
	if err != nil {
		return err
	}

	out, err := target.Admin.Execute(ExecuteRequest{
		Name:    template.Operation,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	printOutcome("Execution Outcome", out)
	return nil
}

// enqueueCustomOperation queues one operation outside the template catalog.
func (a *App) enqueueCustomOperation(target HostTarget) error {
	nameRaw, err := a.promptLine("Operation name (e.g. viewer.ping)")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(nameRaw)
	if name == "" {
		return errors.New("operation name required")
	}
	argsRaw, err := a.promptLine("Args as key=value CSV (blank = none)")
	if err != nil {
		return err
	}
	var payload json.RawMessage
	if args := parseArgsCSV(argsRaw); len(args) > 0 {
		payload, err = json.Marshal(args)
		if err != nil {
			return err
		}
	}
	tier, err := a.promptTier(command.LevelImmediate)
	if err != nil {
		return err
	}

	ack, err := target.Admin.Enqueue(EnqueueRequest{
		Name:          name,
		Payload:       payload,
		RequiredLevel: tier.String(),
	})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Enqueue Result")
	fmt.Printf("  command_id:     %s\n", ack.ID)
	fmt.Printf("  status:         %s\n", ack.Status)
	fmt.Printf("  required_level: %s\n", ack.RequiredLevel)
	return nil
}

func (a *App) lookupCommand(target HostTarget) error {
	commandIDRaw, err := a.promptLine("command_id")
	if err != nil {
		return err
	}
	commandID := strings.TrimSpace(commandIDRaw)
	if commandID == "" {
		return errors.New("command_id required")
	}

	result, err := target.Admin.CommandStatus(commandID)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Command Status")
	fmt.Printf("  command_id: %s\n", result.ID)
	fmt.Printf("  status:     %s\n", result.Status)
	if result.Outcome != nil {
		printOutcome("Outcome", *result.Outcome)
	}
	return nil
}

func (a *App) showQueueSnapshot(target HostTarget) error {
	queue, err := target.Admin.Queue()
	if err != nil {
		return err
	}
	printQueueStatus(queue)
	return nil
}

func (a *App) clearHostQueue(target HostTarget) error {
	confirm, err := a.promptLine("Type CLEAR to confirm")
	if err != nil {
		return err
	}
	if strings.TrimSpace(confirm) != "CLEAR" {
		return errors.New("clear cancelled")
	}
	if err := target.Admin.ClearQueue(); err != nil {
		return err
	}
	log.Info().Str("target", target.Name).Msg("host queue cleared")
	return a.showQueueSnapshot(target)
}

func printQueueStatus(status QueueStatus) {
	snap := status.Queue
	fmt.Println()
	fmt.Println("Queue Snapshot")
	fmt.Printf("  queued:        %d\n", snap.Queued)
	fmt.Printf("  executing:     %d\n", snap.Executing)
	fmt.Printf("  completed:     %d\n", snap.Completed)
	fmt.Printf("  failed:        %d\n", snap.Failed)
	fmt.Printf("  ready:         %v\n", snap.Ready)
	fmt.Printf("  level:         %s\n", snap.Level)
	fmt.Printf("  target_loaded: %v\n", snap.TargetLoaded)
	if status.Bridge != nil {
		fmt.Printf("  bridge:        connected=%v outstanding=%d\n",
			status.Bridge.Connected, status.Bridge.Outstanding)
	}
}

func printOutcome(header string, out command.Outcome) {
	fmt.Println()
	fmt.Println(header)
	fmt.Printf("  command_id: %s\n", out.CommandID)
	fmt.Printf("  operation:  %s\n", out.Name)
	fmt.Printf("  success:    %v\n", out.Success)
	if strings.TrimSpace(out.Error) != "" {
		fmt.Printf("  error:      %s\n", out.Error)
	}
	fmt.Printf("  completed:  %s\n", out.CompletedAt.Format(time.RFC3339))
}

// promptCommandTemplateSelection renders the guided command list and returns
// one selection. Templates whose default level is not currently met are
// annotated so the operator knows the command will wait in the queue.
func (a *App) promptCommandTemplateSelection(
	label string,
	templates []CommandTemplate,
	ready ReadyStatus,
	annotate bool,
) (CommandTemplate, error) {
	fmt.Println("Available Commands")
	for i := range templates {
		tpl := templates[i]
		note := ""
		if annotate && !eligibleNow(tpl.DefaultTier, ready) {
			note = fmt.Sprintf("  (queued until %s)", tpl.DefaultTier)
		}
		fmt.Printf("  %d) %s [%s]%s\n", i+1, tpl.Label, tpl.Operation, note)
		if strings.TrimSpace(tpl.Description) != "" {
			fmt.Printf("     - %s\n", tpl.Description)
		}
	}
	choice, err := a.promptInt(label, 1, len(templates), true, true)
	if err != nil {
		return CommandTemplate{}, err
	}
	return templates[choice-1], nil
}

// promptTier collects the required readiness level, defaulting to the
// template's own tier on a blank line.
func (a *App) promptTier(def command.Level) (command.Level, error) {
	raw, err := a.promptLine(fmt.Sprintf("required level [immediate|transport-ready|target-loaded] (default=%s)", def))
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return command.ParseLevel(raw)
}

// promptCommandArgs collects required/optional argument values for one
// command template.
func (a *App) promptCommandArgs(specs []CommandArgSpec) (map[string]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(specs))
	for i := range specs {
		spec := specs[i]
		if strings.TrimSpace(spec.Key) == "" {
			continue
		}
		for {
			prompt := strings.TrimSpace(spec.Prompt)
			if prompt == "" {
				prompt = spec.Key
			}
			if strings.TrimSpace(spec.DefaultValue) != "" {
				prompt += fmt.Sprintf(" (default=%s)", spec.DefaultValue)
			}
			raw, err := a.promptLine(prompt)
			if err != nil {
				return nil, err
			}
			value := strings.TrimSpace(raw)
			if value == "" && strings.TrimSpace(spec.DefaultValue) != "" {
				value = strings.TrimSpace(spec.DefaultValue)
			}
			if spec.Required && value == "" {
				fmt.Printf("Argument %q is required.\n", spec.Key)
				continue
			}
			if value != "" {
				out[spec.Key] = value
			}
			break
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (a *App) active() (HostTarget, bool) {
	if a.activeTarget < 0 || a.activeTarget >= len(a.targets) {
		return HostTarget{}, false
	}
	return a.targets[a.activeTarget], true
}

func (a *App) defaultTargetHost() string {
	target, ok := a.active()
	if !ok {
		return "127.0.0.1"
	}
	host, _, err := net.SplitHostPort(target.Admin.Address())
	if err != nil || strings.TrimSpace(host) == "" {
		return "127.0.0.1"
	}
	return host
}

func (a *App) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Printf("%s: ", label)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) promptInt(label string, min int, max int, allowBack bool, allowExit bool) (int, error) {
	for {
		rangePrompt := fmt.Sprintf("%s [%d-%d", label, min, max)
		if allowBack {
			rangePrompt += "|back|b"
		}
		if allowExit {
			rangePrompt += "|exit|e"
		}
		rangePrompt += "]"
		line, err := a.promptLine(rangePrompt)
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if allowBack && (trimmed == "back" || trimmed == "b") {
			return 0, ErrNavigateBack
		}
		if allowExit && (trimmed == "exit" || trimmed == "e") {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Println("Invalid selection.")
			continue
		}
		return v, nil
	}
}

func NewRemoteHostAdmin(addr string, token string) *RemoteHostAdmin {
	return &RemoteHostAdmin{
		addr:  strings.TrimSpace(addr),
		token: strings.TrimSpace(token),
		// Execute-now blocks until the viewer replies or the host gives
		// up at its ack deadline, so the client waits longer than that.
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RemoteHostAdmin) Address() string {
	return c.addr
}

func (c *RemoteHostAdmin) Health() (HealthStatus, error) {
	var out HealthStatus
	if err := c.do(http.MethodGet, "/health", nil, &out, http.StatusOK); err != nil {
		return HealthStatus{}, err
	}
	return out, nil
}

func (c *RemoteHostAdmin) Ready() (ReadyStatus, error) {
	var out ReadyStatus
	// 503 carries the same body while the coordinator is not ready.
	err := c.do(http.MethodGet, "/ready", nil, &out, http.StatusOK, http.StatusServiceUnavailable)
	if err != nil {
		return ReadyStatus{}, err
	}
	return out, nil
}

func (c *RemoteHostAdmin) Queue() (QueueStatus, error) {
	var out QueueStatus
	if err := c.do(http.MethodGet, "/api/v1/queue", nil, &out, http.StatusOK); err != nil {
		return QueueStatus{}, err
	}
	return out, nil
}

func (c *RemoteHostAdmin) Enqueue(req EnqueueRequest) (EnqueueAck, error) {
	var out EnqueueAck
	if err := c.do(http.MethodPost, "/api/v1/commands", req, &out, http.StatusAccepted); err != nil {
		return EnqueueAck{}, err
	}
	return out, nil
}

func (c *RemoteHostAdmin) Execute(req ExecuteRequest) (command.Outcome, error) {
	var out executeResponse
	if err := c.do(http.MethodPost, "/api/v1/commands/execute", req, &out, http.StatusOK); err != nil {
		return command.Outcome{}, err
	}
	return out.Outcome, nil
}

func (c *RemoteHostAdmin) CommandStatus(commandID string) (CommandStatusResult, error) {
	var out CommandStatusResult
	path := "/api/v1/commands/" + url.PathEscape(strings.TrimSpace(commandID))
	// 404 still decodes: the body reports status not-found.
	err := c.do(http.MethodGet, path, nil, &out, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return CommandStatusResult{}, err
	}
	return out, nil
}

func (c *RemoteHostAdmin) ClearQueue() error {
	return c.do(http.MethodDelete, "/api/v1/queue", nil, nil, http.StatusOK)
}

// do sends one API request to the coordinator and decodes the response.
func (c *RemoteHostAdmin) do(method string, path string, in any, out any, okStatuses ...int) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, "http://"+c.addr+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if !statusAllowed(resp.StatusCode, okStatuses) {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && strings.TrimSpace(apiErr.Error) != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Close releases pooled connections for this target.
func (c *RemoteHostAdmin) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func statusAllowed(status int, allowed []int) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}

func (a *App) closeTargets() {
	for _, t := range a.targets {
		_ = t.Admin.Close()
	}
}

// commandTemplateCatalog is the stable list of CLI-exposed viewer commands.
func commandTemplateCatalog() []CommandTemplate {
	return []CommandTemplate{
		{
			ID:          "viewer.ping",
			Label:       "Ping Viewer",
			Description: "Liveness probe against the embedded viewer.",
			Operation:   "viewer.ping",
			DefaultTier: command.LevelImmediate,
		},
		{
			ID:          "viewer.get-info",
			Label:       "Document Info",
			Description: "Report current document state.",
			Operation:   "viewer.get-info",
			DefaultTier: command.LevelTransportReady,
		},
		{
			ID:          "viewer.goto-page",
			Label:       "Go To Page",
			Description: "Jump to a page in the loaded document.",
			Operation:   "viewer.goto-page",
			Args: []CommandArgSpec{
				{Key: "page", Prompt: "page number", Kind: "int", Required: true},
			},
			DefaultTier: command.LevelTargetLoaded,
		},
		{
			ID:          "viewer.zoom",
			Label:       "Set Zoom",
			Description: "Set the zoom scale on the loaded document.",
			Operation:   "viewer.zoom",
			Args: []CommandArgSpec{
				{Key: "scale", Prompt: "zoom scale", Kind: "float", Required: true, DefaultValue: "1.0"},
			},
			DefaultTier: command.LevelTargetLoaded,
		},
		{
			ID:          "viewer.search",
			Label:       "Search Document",
			Description: "Search the loaded document for a query.",
			Operation:   "viewer.search",
			Args: []CommandArgSpec{
				{Key: "query", Prompt: "search query", Kind: "string", Required: true},
			},
			DefaultTier: command.LevelTargetLoaded,
		},
	}
}

// buildPayload converts collected argument strings into the typed JSON
// payload the viewer operation expects.
func buildPayload(specs []CommandArgSpec, values map[string]string) (json.RawMessage, error) {
	if len(specs) == 0 || len(values) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(values))
	for i := range specs {
		spec := specs[i]
		raw, ok := values[spec.Key]
		if !ok {
			continue
		}
		switch spec.Kind {
		case "int":
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("argument %q must be an integer", spec.Key)
			}
			fields[spec.Key] = n
		case "float":
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q must be a number", spec.Key)
			}
			fields[spec.Key] = f
		default:
			fields[spec.Key] = raw
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

// eligibleNow mirrors the coordinator release rule for one required level so
// the wizard can flag commands that will sit in the queue.
func eligibleNow(min command.Level, status ReadyStatus) bool {
	if !status.Ready || status.Level < min {
		return false
	}
	if min >= command.LevelTargetLoaded && !status.TargetLoaded {
		return false
	}
	return true
}

func parseArgsCSV(in string) map[string]string {
	raw := strings.TrimSpace(in)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(map[string]string)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeTargetAddr accepts host:port, or a bare port joined to the
// default host.
func normalizeTargetAddr(defaultHost string, requested string) (string, error) {
	req := strings.TrimSpace(requested)
	if req == "" {
		return "", errors.New("address required")
	}
	if !strings.Contains(req, ":") {
		if _, err := strconv.Atoi(req); err != nil {
			return "", fmt.Errorf("invalid port %q", req)
		}
		return net.JoinHostPort(defaultHost, req), nil
	}
	host, port, err := net.SplitHostPort(req)
	if err != nil {
		return "", fmt.Errorf("invalid address %q", req)
	}
	if strings.TrimSpace(host) == "" {
		host = defaultHost
	}
	if strings.TrimSpace(port) == "" {
		return "", fmt.Errorf("invalid address %q", req)
	}
	return net.JoinHostPort(host, port), nil
}

func (a *App) targetExists(name string, addr string) bool {
	for _, t := range a.cfg.Targets {
		if strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(name)) {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(t.Addr), strings.TrimSpace(addr)) {
			return true
		}
	}
	return false
}

func (a *App) clearIfEnabled() {
	if !a.clearScreen {
		return
	}
	fmt.Print("\033[H\033[2J")
}

// ensureFile creates a missing file and parent directory for config
// bootstrapping.
func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}
