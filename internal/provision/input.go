package provision

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// InputSource supplies the values a provisioning run may need from the
// operator, so the workflow is drivable both interactively and from
// scripted or test inputs.
type InputSource interface {
	PeerName() (string, error)
	ConfirmOverwrite(name string) (bool, error)
	ListenPort(current int) (int, error)
}

// PromptInput asks on the terminal.
type PromptInput struct{}

func (PromptInput) PeerName() (string, error) {
	prompt := promptui.Prompt{
		Label: "Peer name",
		Validate: func(s string) error {
			if SanitizeName(s) == "" {
				return fmt.Errorf("name must contain at least one of [A-Za-z0-9_-]")
			}
			return nil
		},
	}
	return prompt.Run()
}

func (PromptInput) ConfirmOverwrite(name string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Peer %q already exists, replace it", name),
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (PromptInput) ListenPort(current int) (int, error) {
	prompt := promptui.Prompt{
		Label:   "Listen port",
		Default: fmt.Sprintf("%d", current),
		Validate: func(s string) error {
			var port int
			if _, err := fmt.Sscanf(s, "%d", &port); err != nil || port < 1 || port > 65535 {
				return fmt.Errorf("port must be between 1 and 65535")
			}
			return nil
		},
	}
	answer, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	var port int
	fmt.Sscanf(answer, "%d", &port)
	return port, nil
}

// ScriptedInput answers from fixed values, for non-interactive use.
type ScriptedInput struct {
	Name      string
	Overwrite bool
	Port      int
}

func (s ScriptedInput) PeerName() (string, error) {
	if s.Name == "" {
		return "", fmt.Errorf("no peer name supplied")
	}
	return s.Name, nil
}

func (s ScriptedInput) ConfirmOverwrite(string) (bool, error) {
	return s.Overwrite, nil
}

func (s ScriptedInput) ListenPort(current int) (int, error) {
	if s.Port == 0 {
		return current, nil
	}
	return s.Port, nil
}
