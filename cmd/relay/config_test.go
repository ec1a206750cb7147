package main

import (
	"testing"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults_And_Lists(t *testing.T) {
	req := require.New(t)

	// Given only the required variables plus two lists
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CENSORED_WORDS", "foo, bar,,")
	t.Setenv("ALLOWED_ORIGINS", "")

	// When loading the config
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	// Then defaults are applied and lists are cleaned
	req.NoError(err)
	req.Equal(8080, config.HTTPPort)
	req.Equal(64, config.ConnectionBufferSize)
	req.Equal([]string{"foo", "bar"}, config.CensoredWordList())
	req.Empty(config.AllowedOriginList())
	r, err := config.CharacterRune()
	req.NoError(err)
	req.Equal('*', r)
}

func TestConfig_CharacterRune_Rejects_Multiple_Characters(t *testing.T) {
	req := require.New(t)

	// Given a replacement of two characters
	config := Config{CharReplacement: "**"}

	// When converting it
	_, err := config.CharacterRune()

	// Then it is refused
	req.Error(err)
}
