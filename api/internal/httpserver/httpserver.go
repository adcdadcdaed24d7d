package httpserver

import (
	"log"
	"net/http"
)

// RegisterHealthz вешает /healthz на DefaultServeMux.
// ready() == nil — 200, иначе 503 с текстом ошибки.
func RegisterHealthz(ready func() error) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Start слушает на addr через DefaultServeMux — туда же ListenForWebhook
// регистрирует обработчик вебхука.
func Start(addr string) error {
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
