package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/lex00/ecs-devsecops-go/intrinsics"
	"github.com/lex00/ecs-devsecops-go/resources/ecs"
	"github.com/lex00/ecs-devsecops-go/resources/iam"
)

func TestProperties_OmitsZeroValues(t *testing.T) {
	props, err := Properties(ecs.Cluster{ClusterName: "demo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ClusterName": "demo"}, props)
}

func TestProperties_NestedStructAndIntrinsics(t *testing.T) {
	task := ecs.TaskDefinition{
		Cpu:              "256",
		ExecutionRoleArn: GetAtt{LogicalName: "TaskExecutionRole", Attribute: "Arn"},
		ContainerDefinitions: Any(ecs.TaskDefinition_ContainerDefinition{
			Name:      "web",
			Memory:    256,
			Essential: true,
			PortMappings: Any(ecs.TaskDefinition_PortMapping{
				ContainerPort: 80,
				Protocol:      "tcp",
			}),
			LogConfiguration: &ecs.TaskDefinition_LogConfiguration{
				LogDriver: "awslogs",
				Options:   map[string]any{"awslogs-group": Ref{LogicalName: "LogGroup"}},
			},
		}),
	}

	props, err := Properties(task)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"TaskExecutionRole", "Arn"}}, props["ExecutionRoleArn"])
	container := props["ContainerDefinitions"].([]any)[0].(map[string]any)
	assert.Equal(t, 256, container["Memory"])
	assert.Equal(t, true, container["Essential"])
	assert.NotContains(t, container, "Cpu")
	port := container["PortMappings"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"ContainerPort": 80, "Protocol": "tcp"}, port)
	logCfg := container["LogConfiguration"].(map[string]any)
	assert.Equal(t, map[string]any{"Ref": "LogGroup"}, logCfg["Options"].(map[string]any)["awslogs-group"])
}

func TestProperties_PolicyDocument(t *testing.T) {
	props, err := Properties(iam.Role{
		AssumeRolePolicyDocument: AssumeRolePolicy("ecs-tasks.amazonaws.com"),
	})
	require.NoError(t, err)

	doc := props["AssumeRolePolicyDocument"].(map[string]any)
	stmt := doc["Statement"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"Service": "ecs-tasks.amazonaws.com"}, stmt["Principal"])
}

func TestProperties_Pointer(t *testing.T) {
	props, err := Properties(&ecs.Cluster{ClusterName: "demo"})
	require.NoError(t, err)
	assert.Equal(t, "demo", props["ClusterName"])
}

func TestProperties_NotStruct(t *testing.T) {
	_, err := Properties("nope")
	assert.Error(t, err)
}
