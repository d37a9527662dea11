package diagnostics

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket and streams every
// subsequent Decision as a JSON frame until the client disconnects.
func ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("diagnostics: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, ch := Subscribe()
	if id == 0 {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "max diagnostics clients reached"))
		return
	}
	defer Unsubscribe(id)

	for payload := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("diagnostics: websocket write error: %v", err)
			return
		}
	}
}
