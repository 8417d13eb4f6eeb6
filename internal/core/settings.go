package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/store"
)

// SettingKeys lists the settings that can be stored.
var SettingKeys = []string{
	store.SettingVaultRoot,
	store.SettingUseHexPadding,
	store.SettingAddFVExtension,
	store.SettingDefaultDestination,
}

var (
	// ErrUnknownSetting is returned by SetSetting for keys outside SettingKeys.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting is returned by SetSetting for malformed values.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// SetSetting stores an override for key. Boolean settings must parse with
// strconv.ParseBool and are stored in canonical form.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case store.SettingVaultRoot, store.SettingDefaultDestination:
	case store.SettingUseHexPadding, store.SettingAddFVExtension:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w %q for %s: must be true or false", ErrInvalidSetting, value, key)
		}
		value = strconv.FormatBool(b)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.logEvent(ctx, "settings", fmt.Sprintf("%s set to %q", key, value), 1, store.SeverityInfo)
	return nil
}
