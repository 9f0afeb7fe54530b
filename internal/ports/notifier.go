package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Notifier presenta el estado de cada ciclo al usuario.
type Notifier interface {
	// Report muestra el estado del ciclo. En la implementación de consola,
	// imprime una tabla formateada.
	Report(ctx context.Context, status domain.CycleStatus) error
}
