//go:build !integration

package payment

import (
	"io"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func checkoutParams() adapter.CheckoutParams {
	return adapter.CheckoutParams{
		UserID:     "user-1",
		Email:      "u@test",
		PriceID:    "price_pro",
		SuccessURL: "https://studio.test/success",
		CancelURL:  "https://studio.test/cancel",
	}
}
