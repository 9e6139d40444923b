package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"logwatch/internal/app/errors"
)

// Config represents the full server configuration loaded from YAML.
type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Endpoints []EndpointConfig      `yaml:"endpoints"`
	Actions   []EndpointConfig      `yaml:"actions"`
	Views     map[string]ViewConfig `yaml:"views"`
	Logging   struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// ServerConfig is the `server:` section of the configuration file.
type ServerConfig struct {
	SocketAddr            string `yaml:"socket-addr" mapstructure:"socket-addr"`
	SocketPort            int    `yaml:"socket-port" mapstructure:"socket-port"`
	LateJoinersBufferSize int    `yaml:"late-joiners-buffer-size" mapstructure:"late-joiners-buffer-size"`
	StayActive            bool   `yaml:"stay-active" mapstructure:"stay-active"`
}

// AwaitConfig names one precondition: this action must reach `finished`.
type AwaitConfig struct {
	Completed string `yaml:"completed" mapstructure:"completed"`
}

// EventSeparationConfig selects and configures the per-endpoint separator.
type EventSeparationConfig struct {
	Method string `yaml:"method" mapstructure:"method"`
	Trim   bool   `yaml:"trim" mapstructure:"trim"`
}

// SSHConfig carries the launch parameters for a `type: ssh` endpoint.
type SSHConfig struct {
	User         string   `yaml:"user" mapstructure:"user"`
	Host         string   `yaml:"host" mapstructure:"host"`
	Port         int      `yaml:"port" mapstructure:"port"`
	IdentityFile string   `yaml:"identity-file" mapstructure:"identity-file"`
	ExtraOptions []string `yaml:"extra-options" mapstructure:"extra-options"`
}

// EndpointConfig describes one endpoint (register non-empty) or action
// (register empty — a precondition-only helper with no user-visible handle).
type EndpointConfig struct {
	Register        string                 `yaml:"register" mapstructure:"register"`
	Name             string                 `yaml:"name" mapstructure:"name"`
	Type             string                 `yaml:"type" mapstructure:"type"`
	Command          string                 `yaml:"command" mapstructure:"command"`
	SSH              *SSHConfig             `yaml:"ssh" mapstructure:"ssh"`
	Await            []AwaitConfig          `yaml:"await" mapstructure:"await"`
	EventSeparation  *EventSeparationConfig `yaml:"event-separation" mapstructure:"event-separation"`
}

// StyleConfig binds a (background, foreground) color pair to an endpoint
// name or watch register, optionally scoped to one fd.
type StyleConfig struct {
	Target     string `yaml:"target" mapstructure:"target"`
	FD         string `yaml:"fd" mapstructure:"fd"`
	Background string `yaml:"bg" mapstructure:"bg"`
	Foreground string `yaml:"fg" mapstructure:"fg"`
}

// CommandRegisterConfig pre-seeds a command register with a stdin payload.
type CommandRegisterConfig struct {
	Register string `yaml:"register" mapstructure:"register"`
	Command  string `yaml:"command" mapstructure:"command"`
}

// ViewConfig is one named entry of the `views:` section.
type ViewConfig struct {
	Host                string                  `yaml:"host" mapstructure:"host"`
	ServerPort          int                     `yaml:"server-port" mapstructure:"server-port"`
	LineFormat          string                  `yaml:"line-format" mapstructure:"line-format"`
	ContinuedLineFormat string                  `yaml:"continued-line-format" mapstructure:"continued-line-format"`
	MaxHeldLines        int                     `yaml:"max-held-lines" mapstructure:"max-held-lines"`
	DefaultEndpoint     string                  `yaml:"default-endpoint" mapstructure:"default-endpoint"`
	Filtered            bool                    `yaml:"filtered" mapstructure:"filtered"`
	Show                map[string]string       `yaml:"show" mapstructure:"show"`
	Styles              []StyleConfig           `yaml:"styles" mapstructure:"styles"`
	Commands            []CommandRegisterConfig `yaml:"commands" mapstructure:"commands"`
}

// DefaultConfig returns a configuration with every default applied and no
// endpoints — suitable as the base for viper.Unmarshal.
func DefaultConfig() *Config {
	cfg := &Config{
		Views: make(map[string]ViewConfig),
	}

	cfg.Server.SocketAddr = DefaultSocketAddr
	cfg.Server.SocketPort = DefaultSocketPort
	cfg.Server.LateJoinersBufferSize = DefaultLateJoinersBufferSize

	cfg.Logging.Level = LogLevel
	cfg.Logging.Format = LogFormat

	return cfg
}

// Load reads and validates the configuration at path. A raw yaml.Node walk
// recovers the declared endpoint registers alongside the typed viper
// unmarshal; it is used only to check that both saw the same number of
// endpoints.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToReadConfig, err)
	}

	order, err := parseEndpointOrder(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToParseConfig, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToReadConfig, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToParseConfig, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.checkDeclarationOrder(order); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// ApplyDefaults fills per-endpoint and per-view defaults left unset in YAML.
func (c *Config) ApplyDefaults() {
	if c.Server.SocketAddr == "" {
		c.Server.SocketAddr = DefaultSocketAddr
	}

	if c.Server.SocketPort == 0 {
		c.Server.SocketPort = DefaultSocketPort
	}

	if c.Server.LateJoinersBufferSize == 0 {
		c.Server.LateJoinersBufferSize = DefaultLateJoinersBufferSize
	}

	for i := range c.Endpoints {
		applyEndpointDefaults(&c.Endpoints[i])
	}

	for i := range c.Actions {
		applyEndpointDefaults(&c.Actions[i])
	}

	for name, view := range c.Views {
		if view.MaxHeldLines == 0 {
			view.MaxHeldLines = DefaultMaxHeldLines
		}

		if view.Host == "" {
			view.Host = DefaultSocketAddr
		}

		if view.ServerPort == 0 {
			view.ServerPort = c.Server.SocketPort
		}

		c.Views[name] = view
	}
}

func applyEndpointDefaults(e *EndpointConfig) {
	if e.Type == "" {
		e.Type = KindSubprocess
	}

	if e.EventSeparation == nil {
		e.EventSeparation = &EventSeparationConfig{Method: SeparatorByNewline, Trim: true}
	} else if e.EventSeparation.Method == "" {
		e.EventSeparation.Method = SeparatorByNewline
	}

	if e.SSH != nil && e.SSH.Port == 0 {
		e.SSH.Port = 22
	}
}

// parseEndpointOrder walks the raw document to recover the file order of
// endpoint registers, independent of whatever order viper/mapstructure settles on.
func parseEndpointOrder(data []byte) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var order []string

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return order, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return order, nil
	}

	for i := 0; i < len(doc.Content); i += 2 {
		key := doc.Content[i]
		value := doc.Content[i+1]

		if key.Value != "endpoints" || value.Kind != yaml.SequenceNode {
			continue
		}

		for _, item := range value.Content {
			if item.Kind != yaml.MappingNode {
				continue
			}

			for j := 0; j < len(item.Content); j += 2 {
				if item.Content[j].Value == "register" {
					order = append(order, item.Content[j+1].Value)
				}
			}
		}
	}

	return order, nil
}

// checkDeclarationOrder cross-checks the raw-node register order against the
// unmarshalled slice; a mismatch in length means viper dropped or duplicated
// an entry silently, which we treat as a configuration error rather than a
// silent behavior change in endpoint start order.
func (c *Config) checkDeclarationOrder(order []string) error {
	if len(order) != len(c.Endpoints) {
		return fmt.Errorf("endpoint count mismatch: declared %d, parsed %d", len(order), len(c.Endpoints))
	}

	return nil
}

// Validate checks register/name uniqueness, precondition references, and
// any statically-checkable per-endpoint fields.
func (c *Config) Validate() error {
	if c.Server.SocketPort <= 0 || c.Server.SocketPort > 65535 {
		return fmt.Errorf("invalid socket-port %d", c.Server.SocketPort)
	}

	registers := make(map[string]bool)
	names := make(map[string]bool)

	all := append(append([]EndpointConfig{}, c.Endpoints...), c.Actions...)

	for _, e := range all {
		if e.Name == "" {
			return fmt.Errorf("endpoint with register %q has no name", e.Register)
		}

		if names[e.Name] {
			return fmt.Errorf("%w: %s", errors.ErrDuplicateName, e.Name)
		}

		names[e.Name] = true

		if e.Register != "" {
			if registers[e.Register] {
				return fmt.Errorf("%w: %s", errors.ErrDuplicateRegister, e.Register)
			}

			registers[e.Register] = true
		}

		switch e.Type {
		case KindSubprocess:
			if e.Command == "" {
				return fmt.Errorf("endpoint %s: subprocess requires a command", e.Name)
			}
		case KindSSH:
			if e.SSH == nil || e.SSH.Host == "" {
				return fmt.Errorf("endpoint %s: ssh requires host", e.Name)
			}
		default:
			return fmt.Errorf("endpoint %s: unknown type %q", e.Name, e.Type)
		}

		if e.EventSeparation != nil {
			switch e.EventSeparation.Method {
			case SeparatorByNewline, SeparatorByBrackets:
			default:
				return fmt.Errorf("%w: %s", errors.ErrUnknownSeparator, e.EventSeparation.Method)
			}
		}
	}

	for _, e := range all {
		for _, await := range e.Await {
			if !names[await.Completed] {
				return fmt.Errorf("%w: %s awaits %s", errors.ErrPreconditionUnknown, e.Name, await.Completed)
			}
		}
	}

	for viewName, view := range c.Views {
		for _, style := range view.Styles {
			if _, err := regexp.Compile(regexp.QuoteMeta(style.Target)); err != nil {
				return fmt.Errorf("view %s: invalid style target %q", viewName, style.Target)
			}
		}
	}

	return nil
}
