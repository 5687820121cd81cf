package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremqtt "github.com/kilianp07/spotmarket/core/mqtt"
	"github.com/kilianp07/spotmarket/infra/mqtt"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
log_type information
connection_messages true
log_timestamp true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	addr := net.JoinHostPort(host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Logf("mosquitto not ready at %s: %v", addr, err)
		t.Skip("Mosquitto not ready after retries")
	}
	return cont, broker
}

// connectConsumer subscribes to the result topic and acknowledges every run.
func connectConsumer(broker string, t *testing.T, received chan<- coremqtt.ResultSet) paho.Client {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("consumer-sim")
	cli := paho.NewClient(opts)
	var connErr error
	time.Sleep(250 * time.Millisecond)
	for i := 0; i < 5; i++ {
		token := cli.Connect()
		token.Wait()
		connErr = token.Error()
		if connErr == nil {
			break
		}
		t.Logf("consumer connect attempt %d to %s: %v", i+1, broker, connErr)
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	if connErr != nil {
		t.Logf("consumer connect failed to %s: %v", broker, connErr)
		t.Skip("Mosquitto not ready after retries")
	}
	if token := cli.Subscribe("dispatch/results", 0, func(_ paho.Client, m paho.Message) {
		var msg struct {
			RunID string `json:"run_id"`
			coremqtt.ResultSet
		}
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			t.Errorf("decode results: %v", err)
			return
		}
		select {
		case received <- msg.ResultSet:
		default:
		}
		payload, _ := json.Marshal(map[string]string{"run_id": msg.RunID})
		cli.Publish("dispatch/ack", 0, false, payload)
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	return cli
}

func TestResultPublishWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	received := make(chan coremqtt.ResultSet, 1)
	consumer := connectConsumer(broker, t, received)
	defer consumer.Disconnect(100)

	pub, err := mqtt.NewPahoClient(mqtt.Config{
		Broker:      broker,
		ClientID:    "dispatcher",
		ResultTopic: "dispatch/results",
		AckTopic:    "dispatch/ack",
	})
	if err != nil {
		t.Fatalf("mqtt client: %v", err)
	}
	defer pub.Disconnect()

	set := coremqtt.ResultSet{
		Objective: 5850,
		Prices:    []coremqtt.RegionPrice{{Region: "NSW", Service: "energy", Price: 130}},
		Dispatch: []coremqtt.UnitDispatch{
			{Unit: "A", Service: "energy", MW: 45},
			{Unit: "B", Service: "energy", MW: 55},
		},
	}
	runID, err := pub.PublishResults(set)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	ok, err := pub.WaitForAck(runID, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("ack wait failed: ok=%v err=%v", ok, err)
	}

	select {
	case got := <-received:
		if got.Objective != set.Objective {
			t.Errorf("objective mismatch: %v", got.Objective)
		}
		if len(got.Prices) != 1 || got.Prices[0].Price != 130 {
			t.Errorf("prices mismatch: %+v", got.Prices)
		}
		if len(got.Dispatch) != 2 {
			t.Errorf("dispatch mismatch: %+v", got.Dispatch)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("results never received")
	}
}
